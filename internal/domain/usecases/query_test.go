package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/session"
)

type fixture struct {
	store  *session.Store
	ingest *IngestUseCase
	query  *QueryUseCase
	llm    *mockCompletion
	rec    *outcomeRecorder
}

func newFixture(t *testing.T, cfg QueryConfig) *fixture {
	t.Helper()
	store := session.NewStore(time.Hour)
	llm := &mockCompletion{}
	rec := newOutcomeRecorder()
	limiter := NewLimiter(4)
	return &fixture{
		store:  store,
		ingest: NewIngestUseCase(store, &mockBuilder{}, 200, 20, WithLimiter(limiter)),
		query:  NewQueryUseCase(store, llm, nil, cfg, WithLimiter(limiter), WithRecorder(rec)),
		llm:    llm,
		rec:    rec,
	}
}

func (f *fixture) add(t *testing.T, sessionID, name string, texts ...string) entities.IngestResult {
	t.Helper()
	res, err := f.ingest.Ingest(context.Background(), entities.IngestRequest{
		SessionID:    sessionID,
		DocumentName: name,
		Records:      records(texts...),
	})
	require.NoError(t, err)
	return res
}

func TestQueryUseCase_ReturnsAnswer(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "sky.pdf", "The sky is blue on a clear day.", "Grass is green.")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return prompt + " The sky is blue.", nil
	}

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "what colour is the sky"})
	require.NoError(t, err)

	assert.Equal(t, entities.OutcomeAnswered, ans.Outcome)
	assert.Equal(t, "The sky is blue.", ans.Text)
	assert.Greater(t, ans.Confidence, 0.0)
	assert.Contains(t, ans.Citations, entities.Citation{Source: "sky.pdf", Page: 1})
	assert.Contains(t, f.llm.lastPrompt(), "Question: what colour is the sky")
	assert.Equal(t, 512, f.llm.maxTokens)
	assert.Equal(t, []entities.Outcome{entities.OutcomeAnswered}, f.rec.outcomes[OpAsk])
	assert.Equal(t, []string{"sky.pdf"}, ans.Sources)
}

func TestQueryUseCase_BlankQuestion(t *testing.T) {
	f := newFixture(t, QueryConfig{})

	_, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "  "})
	assert.ErrorIs(t, err, entities.ErrBlankQuestion)
	_, err = f.query.Retrieve(context.Background(), entities.QueryRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, entities.ErrBlankQuestion)
}

func TestQueryUseCase_NoSession(t *testing.T) {
	f := newFixture(t, QueryConfig{})

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "missing", Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeNoSession, ans.Outcome)
	assert.Equal(t, MsgNoSession, ans.Text)
	assert.NotNil(t, ans.Citations)
	assert.Equal(t, 0, f.llm.calls())
}

func TestQueryUseCase_NoDocumentsForFilter(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "alpha text")

	out, err := f.query.Retrieve(context.Background(), entities.QueryRequest{
		SessionID:   "s1",
		Question:    "alpha",
		DocumentIDs: []string{"unknown.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeNoDocuments, out.Outcome)
	assert.Empty(t, out.Hits)
}

func TestQueryUseCase_EmptySessionHasNoDocuments(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.store.GetOrCreate(context.Background(), "s1")

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "x"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeNoDocuments, ans.Outcome)
	assert.Equal(t, MsgNoDocuments, ans.Text)
}

func TestQueryUseCase_UnrelatedSkipsGeneration(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "sky.pdf", "The sky is blue on a clear day.")

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "quantum chromodynamics lattice"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeUnrelated, ans.Outcome)
	assert.Equal(t, MsgUnrelated, ans.Text)
	assert.Equal(t, 0.0, ans.Confidence)
	assert.Equal(t, 0, f.llm.calls())
}

func TestQueryUseCase_RetrieveScoresAndCites(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "golang channels", "golang maps")
	f.add(t, "s1", "b.pdf", "golang channels")

	out, err := f.query.Retrieve(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "golang channels", K: 2})
	require.NoError(t, err)

	assert.Equal(t, entities.OutcomeAnswered, out.Outcome)
	assert.True(t, out.Relevant)
	require.Len(t, out.Hits, 2, "duplicate text across documents collapses")
	assert.Equal(t, "golang channels", out.Hits[0].Chunk.Text)
	assert.Equal(t, "a.pdf", out.Hits[0].Chunk.SourceName)
	assert.Equal(t, 75.0, out.Confidence)
	assert.Equal(t, []entities.Citation{{Source: "a.pdf", Page: 1}, {Source: "a.pdf", Page: 2}}, out.Citations)
	assert.Equal(t, 0, f.llm.calls())
}

func TestQueryUseCase_FilterByIDOrName(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	a := f.add(t, "s1", "a.pdf", "shared topic alpha")
	f.add(t, "s1", "b.pdf", "shared topic beta")

	byName, err := f.query.Retrieve(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "shared topic", DocumentIDs: []string{"b.pdf"}})
	require.NoError(t, err)
	require.Len(t, byName.Hits, 1)
	assert.Equal(t, "b.pdf", byName.Hits[0].Chunk.SourceName)

	byID, err := f.query.Retrieve(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "shared topic", DocumentIDs: []string{a.DocumentID}})
	require.NoError(t, err)
	require.Len(t, byID.Hits, 1)
	assert.Equal(t, "a.pdf", byID.Hits[0].Chunk.SourceName)
}

func TestQueryUseCase_HistoryLimited(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "the sky is blue")

	history := make([]entities.ChatMessage, 0, 8)
	for _, c := range []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7"} {
		history = append(history, entities.ChatMessage{Role: "user", Content: c})
	}
	_, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "sky", History: history})
	require.NoError(t, err)

	p := f.llm.lastPrompt()
	assert.NotContains(t, p, "user: h2")
	assert.Contains(t, p, "History: user: h3")
	assert.Contains(t, p, "user: h7")
}

func TestQueryUseCase_GenerationTimeout(t *testing.T) {
	f := newFixture(t, QueryConfig{GenerationTimeout: 20 * time.Millisecond})
	f.add(t, "s1", "a.pdf", "the sky is blue")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "sky"})
	assert.ErrorIs(t, err, entities.ErrGenerationTimeout)
	require.Len(t, f.rec.genErrs, 1)
	assert.Error(t, f.rec.genErrs[0])
}

func TestQueryUseCase_GenerationFailure(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "the sky is blue")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("503 from provider")
	}

	_, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "sky"})
	assert.ErrorIs(t, err, entities.ErrGenerationFailed)
	assert.NotErrorIs(t, err, entities.ErrGenerationTimeout)
	assert.Equal(t, []entities.Outcome{entities.OutcomeFailed}, f.rec.outcomes[OpAsk])
}

func TestQueryUseCase_EmptyGenerationFallsBack(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "the sky is blue")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return "Context: the sky is blue\nQuestion: sky", nil
	}

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "sky"})
	require.NoError(t, err)
	assert.Equal(t, "I could not find a relevant answer in the document.", ans.Text)
}

func TestQueryUseCase_NumericDisambiguation(t *testing.T) {
	f := newFixture(t, QueryConfig{NumericDisambiguation: true})
	f.add(t, "s1", "marks.pdf",
		"The student score sheet lists 45/75 questions correct.",
		"Final score consolidated result: 69%.")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return "Answer: The score went from 40% to 69%.", nil
	}

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "what is the score"})
	require.NoError(t, err)
	assert.Equal(t, "69%", ans.Text)

	p := f.llm.lastPrompt()
	assert.Less(t, strings.Index(p, "69%"), strings.Index(p, "45/75"), "percentage chunk leads the context")
}

func TestQueryUseCase_Summarize(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "Give a concise summary of the document chapter one.")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return prompt + "\n- chapter one is covered", nil
	}

	ans, err := f.query.Summarize(context.Background(), entities.SummarizeRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAnswered, ans.Outcome)
	assert.Equal(t, "- chapter one is covered", ans.Text)
	assert.Contains(t, f.llm.lastPrompt(), "Summary:")
}

func TestQueryUseCase_SummarizeSkipsRelevanceGate(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "zebra")

	out, err := f.query.SummaryContext(context.Background(), entities.SummarizeRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAnswered, out.Outcome)
	assert.False(t, out.Relevant)
	assert.Len(t, out.Hits, 1)
}

func TestQueryUseCase_SummarizeNoSession(t *testing.T) {
	f := newFixture(t, QueryConfig{})

	ans, err := f.query.Summarize(context.Background(), entities.SummarizeRequest{SessionID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeNoSession, ans.Outcome)
	assert.Equal(t, 0, f.llm.calls())
}

func TestQueryUseCase_CompareInsufficientDocuments(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "alpha")

	_, err := f.query.Compare(context.Background(), entities.CompareRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, entities.ErrInsufficientDocuments)
	assert.True(t, entities.IsInputError(err))

	f.add(t, "s1", "b.pdf", "beta")
	_, err = f.query.Compare(context.Background(), entities.CompareRequest{SessionID: "s1", DocumentIDs: []string{"a.pdf"}})
	assert.ErrorIs(t, err, entities.ErrInsufficientDocuments)
}

func TestQueryUseCase_CompareNoSession(t *testing.T) {
	f := newFixture(t, QueryConfig{})

	ans, err := f.query.Compare(context.Background(), entities.CompareRequest{SessionID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeNoSession, ans.Outcome)
}

func TestQueryUseCase_Compare(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "alpha document about cats")
	f.add(t, "s1", "b.pdf", "beta document about dogs")
	f.llm.completeFn = func(ctx context.Context, prompt string) (string, error) {
		return "Comparison: Both are about pets.", nil
	}

	docs, outcome, err := f.query.CompareContext(context.Background(), entities.CompareRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeAnswered, outcome)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Document.Name)
	assert.Equal(t, "b.pdf", docs[1].Document.Name)

	ans, err := f.query.Compare(context.Background(), entities.CompareRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "Both are about pets.", ans.Text)
	assert.Equal(t, []entities.Citation{{Source: "a.pdf", Page: 1}, {Source: "b.pdf", Page: 1}}, ans.Citations)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, ans.Sources)
	p := f.llm.lastPrompt()
	assert.Contains(t, p, "Doc1: alpha document about cats")
	assert.Contains(t, p, "Doc2: beta document about dogs")
}

func TestQueryUseCase_ResetRacesQuery(t *testing.T) {
	f := newFixture(t, QueryConfig{})
	f.add(t, "s1", "a.pdf", "the sky is blue")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			f.store.Reset(context.Background(), "s1")
		}
	}()
	for i := 0; i < 50; i++ {
		ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "sky"})
		require.NoError(t, err)
		assert.NotEmpty(t, ans.Text)
	}
	<-done
}

func TestQueryUseCase_SearchFailureIsEmbeddingFailure(t *testing.T) {
	store := session.NewStore(time.Hour)
	rec := newOutcomeRecorder()
	llm := &mockCompletion{}
	unreachable := errors.New("ollama unreachable")
	ingest := NewIngestUseCase(store, &mockBuilder{searchErr: unreachable}, 200, 20)
	query := NewQueryUseCase(store, llm, nil, QueryConfig{}, WithRecorder(rec))
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf"} {
		_, err := ingest.Ingest(ctx, entities.IngestRequest{SessionID: "s1", DocumentName: name, Records: records("some text")})
		require.NoError(t, err)
	}

	_, err := query.Ask(ctx, entities.QueryRequest{SessionID: "s1", Question: "anything"})
	assert.ErrorIs(t, err, entities.ErrEmbeddingFailed)
	assert.NotErrorIs(t, err, entities.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "ollama unreachable")

	_, err = query.Retrieve(ctx, entities.QueryRequest{SessionID: "s1", Question: "anything"})
	assert.ErrorIs(t, err, entities.ErrEmbeddingFailed)

	_, err = query.Summarize(ctx, entities.SummarizeRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, entities.ErrEmbeddingFailed)

	_, err = query.Compare(ctx, entities.CompareRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, entities.ErrEmbeddingFailed)

	assert.Zero(t, llm.calls())
	assert.Equal(t, []entities.Outcome{entities.OutcomeFailed}, rec.outcomes[OpAsk])
	assert.Equal(t, []entities.Outcome{entities.OutcomeFailed}, rec.outcomes[OpQuery])
	assert.Equal(t, []entities.Outcome{entities.OutcomeFailed}, rec.outcomes[OpSummarize])
	assert.Equal(t, []entities.Outcome{entities.OutcomeFailed}, rec.outcomes[OpCompare])
}

func TestQueryUseCase_CancelledSearchIsNotEmbeddingFailure(t *testing.T) {
	store := session.NewStore(time.Hour)
	ingest := NewIngestUseCase(store, &mockBuilder{searchErr: context.Canceled}, 200, 20)
	query := NewQueryUseCase(store, &mockCompletion{}, nil, QueryConfig{})
	_, err := ingest.Ingest(context.Background(), entities.IngestRequest{SessionID: "s1", DocumentName: "a.pdf", Records: records("text")})
	require.NoError(t, err)

	_, err = query.Ask(context.Background(), entities.QueryRequest{SessionID: "s1", Question: "q"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, entities.ErrEmbeddingFailed)
}

func TestQueryUseCase_StateAnswerHasEmptySources(t *testing.T) {
	f := newFixture(t, QueryConfig{})

	ans, err := f.query.Ask(context.Background(), entities.QueryRequest{SessionID: "missing", Question: "q"})
	require.NoError(t, err)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.Sources)
}

func TestOutcomeMessage(t *testing.T) {
	assert.Equal(t, MsgNoContext, OutcomeMessage(entities.OutcomeNoContext))
	assert.Equal(t, "", OutcomeMessage(entities.OutcomeAnswered))
}
