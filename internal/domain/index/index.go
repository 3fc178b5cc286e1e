// Package index holds per-document chunk stores and the DocumentIndex that
// wraps them. The nearest-neighbour work itself is delegated to a
// ports.VectorIndex built by an injected ports.IndexBuilder.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// ChunkStore holds the chunk records of one document and answers
// nearest-neighbour queries through its vector index.
type ChunkStore struct {
	chunks []entities.Chunk
	pos    map[string]int // chunk id -> position in chunks
	vec    ports.VectorIndex
}

// NewChunkStore builds the vector index for chunks. chunks must be non-empty.
func NewChunkStore(ctx context.Context, builder ports.IndexBuilder, documentID string, chunks []entities.Chunk) (*ChunkStore, error) {
	if len(chunks) == 0 {
		return nil, entities.ErrEmptyInput
	}

	owned := make([]entities.Chunk, len(chunks))
	copy(owned, chunks)
	pos := make(map[string]int, len(owned))
	for i, c := range owned {
		if c.Text == "" {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, entities.ErrEmptyInput)
		}
		pos[c.ID] = i
	}

	vec, err := builder.Build(ctx, documentID, owned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrEmbeddingFailed, err)
	}
	return &ChunkStore{chunks: owned, pos: pos, vec: vec}, nil
}

// Len returns the number of stored chunks.
func (s *ChunkStore) Len() int {
	return len(s.chunks)
}

// Query returns up to k chunks nearest to query, by ascending distance.
// Ties keep insertion order. Hits that reference unknown chunks are dropped.
func (s *ChunkStore) Query(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	if k <= 0 {
		return []entities.ScoredChunk{}, nil
	}
	if k > len(s.chunks) {
		k = len(s.chunks)
	}

	hits, err := s.vec.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	type ranked struct {
		hit entities.ScoredChunk
		pos int
	}
	results := make([]ranked, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		i, ok := s.pos[h.ChunkID]
		if !ok {
			continue
		}
		if _, dup := seen[h.ChunkID]; dup {
			continue
		}
		seen[h.ChunkID] = struct{}{}
		results = append(results, ranked{
			hit: entities.ScoredChunk{Chunk: s.chunks[i], Distance: h.Distance},
			pos: i,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].hit.Distance != results[j].hit.Distance {
			return results[i].hit.Distance < results[j].hit.Distance
		}
		return results[i].pos < results[j].pos
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]entities.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = r.hit
	}
	return out, nil
}

// Release frees the backing vector index.
func (s *ChunkStore) Release(ctx context.Context) error {
	return s.vec.Release(ctx)
}

// DocumentIndex owns the chunk set of exactly one uploaded document.
// It is immutable after Build.
type DocumentIndex struct {
	id        string
	name      string
	createdAt time.Time
	store     *ChunkStore
}

// Build constructs a DocumentIndex from a non-empty chunk sequence.
// It fails with entities.ErrEmptyInput when chunks is empty.
func Build(ctx context.Context, builder ports.IndexBuilder, documentID, name string, chunks []entities.Chunk) (*DocumentIndex, error) {
	store, err := NewChunkStore(ctx, builder, documentID, chunks)
	if err != nil {
		return nil, err
	}
	return &DocumentIndex{
		id:        documentID,
		name:      name,
		createdAt: time.Now(),
		store:     store,
	}, nil
}

func (d *DocumentIndex) ID() string           { return d.id }
func (d *DocumentIndex) Name() string         { return d.name }
func (d *DocumentIndex) ChunkCount() int      { return d.store.Len() }
func (d *DocumentIndex) CreatedAt() time.Time { return d.createdAt }

// Info describes the document for callers.
func (d *DocumentIndex) Info() entities.DocumentInfo {
	return entities.DocumentInfo{
		ID:         d.id,
		Name:       d.name,
		ChunkCount: d.store.Len(),
		CreatedAt:  d.createdAt,
	}
}

// Search returns up to k nearest chunks. If fewer than k chunks exist, all
// of them are returned.
func (d *DocumentIndex) Search(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	return d.store.Query(ctx, query, k)
}

// Release frees the document's index.
func (d *DocumentIndex) Release(ctx context.Context) error {
	return d.store.Release(ctx)
}
