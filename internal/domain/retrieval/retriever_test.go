package retrieval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

type staticSearcher struct {
	hits  []entities.ScoredChunk
	err   error
	gotK  int
	calls atomic.Int32
}

func (s *staticSearcher) Search(ctx context.Context, query string, k int) ([]entities.ScoredChunk, error) {
	s.calls.Add(1)
	s.gotK = k
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func hit(id, text string, d float64) entities.ScoredChunk {
	return entities.ScoredChunk{Chunk: entities.Chunk{ID: id, Text: text}, Distance: d}
}

func ids(hits []entities.ScoredChunk) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func TestPerIndexK(t *testing.T) {
	tests := []struct {
		k, n, want int
	}{
		{4, 1, 8},
		{4, 2, 4},
		{4, 3, 4},
		{3, 2, 3},
		{1, 1, 2},
		{5, 4, 5},
		{0, 2, 0},
		{4, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PerIndexK(tt.k, tt.n), "k=%d n=%d", tt.k, tt.n)
	}
}

func TestRetrieve_NoIndices(t *testing.T) {
	got, err := NewRetriever(0).Retrieve(context.Background(), nil, "q", 4)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieve_NoMatches(t *testing.T) {
	a := &staticSearcher{}
	b := &staticSearcher{}
	got, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a, b}, "q", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_DeduplicatesSameText(t *testing.T) {
	a := &staticSearcher{hits: []entities.ScoredChunk{hit("a1", "same text", 0.2)}}
	b := &staticSearcher{hits: []entities.ScoredChunk{hit("b1", "same text", 0.1)}}

	got, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a, b}, "q", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].Chunk.ID, "first index in order wins")
}

func TestRetrieve_RequestsPerIndexK(t *testing.T) {
	a := &staticSearcher{}
	b := &staticSearcher{}
	c := &staticSearcher{}

	_, err := NewRetriever(2).Retrieve(context.Background(), []Searcher{a, b, c}, "q", 4)
	require.NoError(t, err)
	for _, s := range []*staticSearcher{a, b, c} {
		assert.Equal(t, 4, s.gotK)
		assert.Equal(t, int32(1), s.calls.Load())
	}
}

func TestRetrieve_RanksAcrossIndices(t *testing.T) {
	a := &staticSearcher{hits: []entities.ScoredChunk{
		hit("a0", "alpha", 0.4),
		hit("a1", "beta", 0.9),
	}}
	b := &staticSearcher{hits: []entities.ScoredChunk{
		hit("b0", "gamma", 0.1),
		hit("b1", "delta", 0.4),
	}}

	got, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a, b}, "q", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b0", "a0", "b1", "a1"}, ids(got))
}

func TestRetrieve_TieBreaksByRankThenIndex(t *testing.T) {
	a := &staticSearcher{hits: []entities.ScoredChunk{
		hit("a0", "one", 0.5),
		hit("a1", "two", 0.5),
	}}
	b := &staticSearcher{hits: []entities.ScoredChunk{
		hit("b0", "three", 0.5),
	}}

	got, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a, b}, "q", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b0", "a1"}, ids(got))
}

func TestRetrieve_TruncatesToKTimesN(t *testing.T) {
	hits := []entities.ScoredChunk{
		hit("a0", "t0", 0.1),
		hit("a1", "t1", 0.2),
		hit("a2", "t2", 0.3),
		hit("a3", "t3", 0.4),
	}
	a := &staticSearcher{hits: hits}

	got, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a}, "q", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0"}, ids(got))
	assert.Equal(t, 2, a.gotK)
}

func TestRetrieve_IndexErrorFailsCall(t *testing.T) {
	boom := errors.New("index broken")
	a := &staticSearcher{hits: []entities.ScoredChunk{hit("a0", "x", 0.1)}}
	b := &staticSearcher{err: boom}

	_, err := NewRetriever(0).Retrieve(context.Background(), []Searcher{a, b}, "q", 2)
	assert.ErrorIs(t, err, boom)
}

func TestRetrieve_Deterministic(t *testing.T) {
	a := &staticSearcher{hits: []entities.ScoredChunk{hit("a0", "x", 0.3), hit("a1", "y", 0.3)}}
	b := &staticSearcher{hits: []entities.ScoredChunk{hit("b0", "z", 0.3), hit("b1", "x", 0.0)}}
	r := NewRetriever(4)

	first, err := r.Retrieve(context.Background(), []Searcher{a, b}, "q", 2)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.Retrieve(context.Background(), []Searcher{a, b}, "q", 2)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"a0", "b0", "a1"}, ids(first))
}

func TestPromotePercentages(t *testing.T) {
	hits := []entities.ScoredChunk{
		hit("c0", "The student attempted 45/75 questions correctly.", 0.1),
		hit("c1", "Section B: 24/25 correct.", 0.2),
		hit("c2", "Final consolidated result: 69%.", 0.3),
		hit("c3", "Overall performance was good.", 0.4),
	}

	got := PromotePercentages(hits)
	assert.Equal(t, []string{"c2", "c0", "c1", "c3"}, ids(got))
	assert.Equal(t, "c0", hits[0].Chunk.ID, "input untouched")
	assert.Empty(t, PromotePercentages(nil))
}
