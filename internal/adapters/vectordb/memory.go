// Package vectordb provides ports.IndexBuilder adapters.
// Both backends embed chunk text through a ports.EmbeddingService and rank by
// squared Euclidean distance, so unit vectors give distances in [0, 4].
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var errDimensionMismatch = errors.New("embedding dimension mismatch")

// Option configures a builder.
type Option func(*builderConfig)

type builderConfig struct {
	normalize bool
}

// WithNormalize controls unit-normalization of vectors. Enabled by default.
func WithNormalize(on bool) Option {
	return func(c *builderConfig) { c.normalize = on }
}

func newBuilderConfig(opts []Option) builderConfig {
	cfg := builderConfig{normalize: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// MemoryIndexBuilder builds in-process indices. Vectors live only as long
// as the index that owns them.
type MemoryIndexBuilder struct {
	embedder ports.EmbeddingService
	cfg      builderConfig
}

// NewMemoryIndexBuilder creates an in-memory index builder.
func NewMemoryIndexBuilder(embedder ports.EmbeddingService, opts ...Option) *MemoryIndexBuilder {
	return &MemoryIndexBuilder{embedder: embedder, cfg: newBuilderConfig(opts)}
}

// Build embeds every chunk and returns an index over them.
func (b *MemoryIndexBuilder) Build(ctx context.Context, documentID string, chunks []entities.Chunk) (ports.VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, entities.ErrEmptyInput
	}
	vectors, err := embedChunks(ctx, b.embedder, chunks, b.cfg.normalize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return &memoryIndex{
		embedder: b.embedder,
		cfg:      b.cfg,
		ids:      ids,
		vectors:  vectors,
	}, nil
}

type memoryIndex struct {
	embedder ports.EmbeddingService
	cfg      builderConfig

	mu       sync.RWMutex
	ids      []string
	vectors  [][]float32
	released bool
}

func (m *memoryIndex) Search(ctx context.Context, query string, k int) ([]ports.Hit, error) {
	m.mu.RLock()
	released := m.released
	m.mu.RUnlock()
	if released || k <= 0 {
		return []ports.Hit{}, nil
	}

	q, err := embedQuery(ctx, m.embedder, query, m.cfg.normalize)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.released {
		return []ports.Hit{}, nil
	}
	return nearest(q, m.ids, m.vectors, k)
}

func (m *memoryIndex) Release(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.ids = nil
	m.vectors = nil
	return nil
}

func embedChunks(ctx context.Context, embedder ports.EmbeddingService, chunks []entities.Chunk, normalize bool) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if normalize {
		for i := range vectors {
			vectors[i] = unit(vectors[i])
		}
	}
	return vectors, nil
}

func embedQuery(ctx context.Context, embedder ports.EmbeddingService, query string, normalize bool) ([]float32, error) {
	q, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if normalize {
		q = unit(q)
	}
	return q, nil
}

// nearest ranks vectors against q. Equal distances keep insertion order.
func nearest(q []float32, ids []string, vectors [][]float32, k int) ([]ports.Hit, error) {
	hits := make([]ports.Hit, 0, len(ids))
	for i, v := range vectors {
		d, err := squaredL2(q, v)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ids[i], err)
		}
		hits = append(hits, ports.Hit{ChunkID: ids[i], Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func squaredL2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errDimensionMismatch
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

// unit returns v scaled to length one. Zero vectors are returned unchanged.
func unit(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
