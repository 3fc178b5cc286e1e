// Package retrieval fans a query out over several document indices and
// merges the results into one deduplicated, ranked list.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/sanitize"
)

// DefaultParallelism bounds concurrent index searches per call.
const DefaultParallelism = 8

// Searcher is a single document's nearest-neighbour search.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error)
}

// Retriever merges results from multiple Searchers.
type Retriever struct {
	parallelism int
}

// NewRetriever creates a Retriever. parallelism <= 0 uses DefaultParallelism.
func NewRetriever(parallelism int) *Retriever {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Retriever{parallelism: parallelism}
}

// PerIndexK is the number of candidates requested from each of n indices
// so that merging does not starve any single document.
func PerIndexK(k, n int) int {
	if n <= 0 || k <= 0 {
		return 0
	}
	fair := (2*k + n - 1) / n
	if fair > k {
		return fair
	}
	return k
}

type candidate struct {
	hit   entities.ScoredChunk
	rank  int // position within its index's results
	index int // position of the index in the input
}

// Retrieve queries every index and returns at most k*len(indices) chunks.
// Duplicate texts keep their first occurrence in index order. The survivors
// are ordered by distance, then per-index rank, then index order.
func (r *Retriever) Retrieve(ctx context.Context, indices []Searcher, query string, k int) ([]entities.ScoredChunk, error) {
	n := len(indices)
	if n == 0 || k <= 0 {
		return []entities.ScoredChunk{}, nil
	}
	perIndexK := PerIndexK(k, n)

	results := make([][]entities.ScoredChunk, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			hits, err := idx.Search(gctx, query, perIndexK)
			if err != nil {
				return fmt.Errorf("searching index %d: %w", i, err)
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	merged := make([]candidate, 0, n*perIndexK)
	for i, hits := range results {
		for rank, h := range hits {
			if _, dup := seen[h.Chunk.Text]; dup {
				continue
			}
			seen[h.Chunk.Text] = struct{}{}
			merged = append(merged, candidate{hit: h, rank: rank, index: i})
		}
	}

	sort.SliceStable(merged, func(a, b int) bool {
		ca, cb := merged[a], merged[b]
		if ca.hit.Distance != cb.hit.Distance {
			return ca.hit.Distance < cb.hit.Distance
		}
		if ca.rank != cb.rank {
			return ca.rank < cb.rank
		}
		return ca.index < cb.index
	})

	if limit := k * n; len(merged) > limit {
		merged = merged[:limit]
	}
	out := make([]entities.ScoredChunk, len(merged))
	for i, c := range merged {
		out[i] = c.hit
	}
	return out, nil
}

// PromotePercentages moves hits whose text contains a percent sign ahead of
// the rest, keeping relative order within each group.
func PromotePercentages(hits []entities.ScoredChunk) []entities.ScoredChunk {
	out := make([]entities.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		if sanitize.HasPercentage(h.Chunk.Text) {
			out = append(out, h)
		}
	}
	for _, h := range hits {
		if !sanitize.HasPercentage(h.Chunk.Text) {
			out = append(out, h)
		}
	}
	return out
}
