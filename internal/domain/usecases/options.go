// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - transport and storage live in adapters.
package usecases

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultMaxConcurrent caps heavy operations (ingest, ask, summarize,
// compare) running at once.
const DefaultMaxConcurrent = 8

// Limiter bounds concurrent heavy operations across use cases.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a Limiter admitting n operations. n <= 0 uses
// DefaultMaxConcurrent.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

type common struct {
	logger   *zap.Logger
	limiter  *Limiter
	recorder ports.Recorder
}

func newCommon(opts []Option) common {
	c := common{
		logger:   zap.NewNop(),
		recorder: ports.NopRecorder{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(0)
	}
	return c
}

// Option configures a use case.
type Option func(*common)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *common) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLimiter shares a concurrency limiter between use cases.
func WithLimiter(l *Limiter) Option {
	return func(c *common) { c.limiter = l }
}

// WithRecorder sets the measurement sink.
func WithRecorder(r ports.Recorder) Option {
	return func(c *common) {
		if r != nil {
			c.recorder = r
		}
	}
}
