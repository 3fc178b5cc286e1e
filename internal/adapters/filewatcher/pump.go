package filewatcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultDebounce is how long a path must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester adds parsed documents to a session.
type Ingester interface {
	Ingest(ctx context.Context, req entities.IngestRequest) (entities.IngestResult, error)
}

// Pump ingests files reported by a FileWatcher into one session. Writes to
// the same path are coalesced until the path has been quiet for the
// debounce interval. With no configured session the first ingest creates
// one and later files join it.
type Pump struct {
	loader   ports.DocumentLoader
	ingester Ingester
	debounce time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	sessionID string
}

// NewPump creates a pump. debounce <= 0 uses DefaultDebounce.
func NewPump(loader ports.DocumentLoader, ingester Ingester, sessionID string, debounce time.Duration, logger *zap.Logger) *Pump {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		loader:    loader,
		ingester:  ingester,
		debounce:  debounce,
		logger:    logger,
		sessionID: sessionID,
	}
}

// SessionID returns the session files are ingested into.
func (p *Pump) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Run consumes events until ctx is done or the channel closes. Paths still
// pending when the channel closes are flushed first.
func (p *Pump) Run(ctx context.Context, events <-chan ports.FileEvent) {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(p.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				p.flush(ctx, pending, time.Time{})
				return
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				pending[ev.Path] = time.Now().Add(p.debounce)
			case ports.FileDeleted:
				delete(pending, ev.Path)
			}
		case now := <-ticker.C:
			p.flush(ctx, pending, now)
		}
	}
}

// flush ingests every pending path due by now. A zero now flushes all.
func (p *Pump) flush(ctx context.Context, pending map[string]time.Time, now time.Time) {
	due := make([]string, 0, len(pending))
	for path, at := range pending {
		if now.IsZero() || !at.After(now) {
			due = append(due, path)
		}
	}
	sort.Strings(due)
	for _, path := range due {
		delete(pending, path)
		p.ingestFile(ctx, path)
	}
}

func (p *Pump) ingestFile(ctx context.Context, path string) {
	records, err := p.loader.Load(ctx, path)
	if err != nil {
		p.logger.Warn("loading watched file failed", zap.String("path", path), zap.Error(err))
		return
	}

	res, err := p.ingester.Ingest(ctx, entities.IngestRequest{
		SessionID:    p.SessionID(),
		DocumentName: filepath.Base(path),
		Records:      records,
	})
	if err != nil {
		p.logger.Warn("ingesting watched file failed", zap.String("path", path), zap.Error(err))
		return
	}

	p.mu.Lock()
	p.sessionID = res.SessionID
	p.mu.Unlock()

	p.logger.Info("watched file ingested",
		zap.String("path", path),
		zap.String("session_id", res.SessionID),
		zap.String("document_id", res.DocumentID),
		zap.Int("chunks", res.ChunkCount))
}
