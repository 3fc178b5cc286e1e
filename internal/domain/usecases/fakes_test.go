package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// overlapIndex scores chunks by the share of query words they lack,
// scaled to [0, 2].
type overlapIndex struct {
	chunks    []entities.Chunk
	searchErr error
}

func (o *overlapIndex) Search(ctx context.Context, query string, k int) ([]ports.Hit, error) {
	if o.searchErr != nil {
		return nil, o.searchErr
	}
	words := strings.Fields(strings.ToLower(strings.Trim(query, "?.!")))
	hits := make([]ports.Hit, 0, len(o.chunks))
	for _, c := range o.chunks {
		text := strings.ToLower(c.Text)
		miss := 0
		for _, w := range words {
			if !strings.Contains(text, w) {
				miss++
			}
		}
		d := 2.0
		if len(words) > 0 {
			d = 2 * float64(miss) / float64(len(words))
		}
		hits = append(hits, ports.Hit{ChunkID: c.ID, Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (o *overlapIndex) Release(ctx context.Context) error { return nil }

type mockBuilder struct {
	err       error
	searchErr error
	delay     time.Duration
}

func (m *mockBuilder) Build(ctx context.Context, documentID string, chunks []entities.Chunk) (ports.VectorIndex, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &overlapIndex{chunks: chunks, searchErr: m.searchErr}, nil
}

// mockCompletion implements ports.CompletionService for testing
type mockCompletion struct {
	mu         sync.Mutex
	completeFn func(ctx context.Context, prompt string) (string, error)
	prompts    []string
	maxTokens  int
}

func (m *mockCompletion) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.maxTokens = maxTokens
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(ctx, prompt)
	}
	return "Answer: generated text", nil
}

func (m *mockCompletion) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockCompletion) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]entities.Outcome
	genErrs  []error
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{outcomes: map[string][]entities.Outcome{}}
}

func (r *outcomeRecorder) RecordOutcome(op string, o entities.Outcome) {
	r.mu.Lock()
	r.outcomes[op] = append(r.outcomes[op], o)
	r.mu.Unlock()
}

func (r *outcomeRecorder) ObserveGeneration(op string, d time.Duration, err error) {
	r.mu.Lock()
	r.genErrs = append(r.genErrs, err)
	r.mu.Unlock()
}

var errEmbedding = errors.New("embedding backend down")

func records(texts ...string) []entities.Record {
	out := make([]entities.Record, len(texts))
	for i, t := range texts {
		out[i] = entities.Record{Text: t, Page: entities.PageRef(i)}
	}
	return out
}
