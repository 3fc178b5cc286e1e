package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/citation"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/index"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/prompt"
	"github.com/0xcro3dile/docqa-go/internal/domain/retrieval"
	"github.com/0xcro3dile/docqa-go/internal/domain/sanitize"
	"github.com/0xcro3dile/docqa-go/internal/domain/scoring"
	"github.com/0xcro3dile/docqa-go/internal/domain/session"
)

// Messages rendered for state outcomes.
const (
	MsgNoSession   = "Please upload a document first!"
	MsgNoDocuments = "No documents found for this session. Please upload a document first."
	MsgNoContext   = "No relevant context found in the uploaded document(s)."
	MsgUnrelated   = "This question appears unrelated to the uploaded document(s)."
)

// Fixed retrieval queries for summary and comparison context.
const (
	SummaryQuery = "Give a concise summary of the document."
	CompareQuery = "Give a concise overview of the document."
)

// Operation names used for logs and metrics.
const (
	OpIngest    = "ingest"
	OpQuery     = "query"
	OpAsk       = "ask"
	OpSummarize = "summarize"
	OpCompare   = "compare"
	OpReset     = "reset"
	OpStatus    = "status"
)

// QueryConfig holds generation and relevance settings.
type QueryConfig struct {
	Threshold             float64
	GenerationTimeout     time.Duration
	MaxTokens             int
	NumericDisambiguation bool
	Parallelism           int
}

// DefaultQueryConfig returns the defaults used when fields are zero.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		Threshold:         scoring.DefaultThreshold,
		GenerationTimeout: 60 * time.Second,
		MaxTokens:         512,
		Parallelism:       retrieval.DefaultParallelism,
	}
}

// QueryUseCase answers questions, summaries and comparisons from a session.
// Single Responsibility: Only query/response logic.
type QueryUseCase struct {
	store      *session.Store
	completion ports.CompletionService
	retriever  *retrieval.Retriever
	scorer     scoring.Scorer
	sanitizer  *sanitize.Sanitizer
	cfg        QueryConfig
	common
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
// A nil sanitizer uses the default rule table.
func NewQueryUseCase(
	store *session.Store,
	completion ports.CompletionService,
	sanitizer *sanitize.Sanitizer,
	cfg QueryConfig,
	opts ...Option,
) *QueryUseCase {
	def := DefaultQueryConfig()
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = def.GenerationTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if sanitizer == nil {
		sanitizer = sanitize.Default()
	}
	return &QueryUseCase{
		store:      store,
		completion: completion,
		retriever:  retrieval.NewRetriever(cfg.Parallelism),
		scorer:     scoring.NewScorer(cfg.Threshold),
		sanitizer:  sanitizer,
		cfg:        cfg,
		common:     newCommon(opts),
	}
}

// Retrieve runs the generation-free query: retrieval, scoring and citations.
func (uc *QueryUseCase) Retrieve(ctx context.Context, req entities.QueryRequest) (entities.RetrievalOutcome, error) {
	if strings.TrimSpace(req.Question) == "" {
		return entities.RetrievalOutcome{}, entities.ErrBlankQuestion
	}
	uc.store.SweepExpired(ctx)

	release, err := uc.limiter.Acquire(ctx)
	if err != nil {
		return entities.RetrievalOutcome{}, err
	}
	defer release()

	out, err := uc.retrieve(ctx, req)
	if err != nil {
		return out, uc.fail(OpQuery, err)
	}
	uc.recorder.RecordOutcome(OpQuery, out.Outcome)
	return out, nil
}

// Ask answers a question from the session's documents.
func (uc *QueryUseCase) Ask(ctx context.Context, req entities.QueryRequest) (entities.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return entities.Answer{}, entities.ErrBlankQuestion
	}
	uc.store.SweepExpired(ctx)

	release, err := uc.limiter.Acquire(ctx)
	if err != nil {
		return entities.Answer{}, err
	}
	defer release()

	// 1. Retrieve and gate
	out, err := uc.retrieve(ctx, req)
	if err != nil {
		return entities.Answer{}, uc.fail(OpAsk, err)
	}
	if out.Outcome != entities.OutcomeAnswered {
		uc.recorder.RecordOutcome(OpAsk, out.Outcome)
		return stateAnswer(out), nil
	}

	// 2. Build context from results
	hits := out.Hits
	numeric := uc.cfg.NumericDisambiguation && sanitize.IsNumericQuestion(req.Question)
	if numeric {
		hits = retrieval.PromotePercentages(hits)
	}
	history := prompt.RenderHistory(req.History, entities.DefaultHistoryLen)
	p := prompt.Ask(prompt.JoinContext(entities.Chunks(hits)), req.Question, history)

	// 3. Generate and clean
	raw, err := uc.generate(ctx, OpAsk, p)
	if err != nil {
		return entities.Answer{}, uc.fail(OpAsk, err)
	}
	text := uc.sanitizer.Sanitize(raw, entities.ModeAnswer)
	if numeric {
		text = sanitize.ExtractPercentage(text)
	}

	uc.recorder.RecordOutcome(OpAsk, entities.OutcomeAnswered)
	return entities.Answer{
		Outcome:    entities.OutcomeAnswered,
		Text:       text,
		Confidence: out.Confidence,
		Citations:  out.Citations,
		Sources:    citation.Sources(out.Citations),
	}, nil
}

// SummaryContext retrieves the context a summary would be generated from.
func (uc *QueryUseCase) SummaryContext(ctx context.Context, req entities.SummarizeRequest) (entities.RetrievalOutcome, error) {
	uc.store.SweepExpired(ctx)
	return uc.summaryContext(ctx, req)
}

// Summarize summarizes the selected documents.
func (uc *QueryUseCase) Summarize(ctx context.Context, req entities.SummarizeRequest) (entities.Answer, error) {
	uc.store.SweepExpired(ctx)

	release, err := uc.limiter.Acquire(ctx)
	if err != nil {
		return entities.Answer{}, err
	}
	defer release()

	out, err := uc.summaryContext(ctx, req)
	if err != nil {
		return entities.Answer{}, uc.fail(OpSummarize, err)
	}
	if out.Outcome != entities.OutcomeAnswered {
		uc.recorder.RecordOutcome(OpSummarize, out.Outcome)
		return stateAnswer(out), nil
	}

	raw, err := uc.generate(ctx, OpSummarize, prompt.Summarize(prompt.JoinContext(entities.Chunks(out.Hits))))
	if err != nil {
		return entities.Answer{}, uc.fail(OpSummarize, err)
	}

	uc.recorder.RecordOutcome(OpSummarize, entities.OutcomeAnswered)
	return entities.Answer{
		Outcome:    entities.OutcomeAnswered,
		Text:       uc.sanitizer.Sanitize(raw, entities.ModeSummary),
		Confidence: out.Confidence,
		Citations:  out.Citations,
		Sources:    citation.Sources(out.Citations),
	}, nil
}

// CompareContext retrieves per-document context for a comparison. It needs
// at least two selected documents.
func (uc *QueryUseCase) CompareContext(ctx context.Context, req entities.CompareRequest) ([]entities.DocumentContext, entities.Outcome, error) {
	uc.store.SweepExpired(ctx)
	return uc.compareContext(ctx, req)
}

// Compare compares two or more documents.
func (uc *QueryUseCase) Compare(ctx context.Context, req entities.CompareRequest) (entities.Answer, error) {
	uc.store.SweepExpired(ctx)

	release, err := uc.limiter.Acquire(ctx)
	if err != nil {
		return entities.Answer{}, err
	}
	defer release()

	docs, outcome, err := uc.compareContext(ctx, req)
	if err != nil {
		return entities.Answer{}, uc.fail(OpCompare, err)
	}
	if outcome != entities.OutcomeAnswered {
		uc.recorder.RecordOutcome(OpCompare, outcome)
		return stateAnswer(entities.RetrievalOutcome{Outcome: outcome}), nil
	}

	contexts := make([]string, len(docs))
	var all []entities.ScoredChunk
	for i, d := range docs {
		contexts[i] = prompt.JoinContext(entities.Chunks(d.Hits))
		all = append(all, d.Hits...)
	}

	raw, err := uc.generate(ctx, OpCompare, prompt.Compare(contexts))
	if err != nil {
		return entities.Answer{}, uc.fail(OpCompare, err)
	}

	cites := citation.FromHits(all)
	uc.recorder.RecordOutcome(OpCompare, entities.OutcomeAnswered)
	return entities.Answer{
		Outcome:    entities.OutcomeAnswered,
		Text:       uc.sanitizer.Sanitize(raw, entities.ModeComparison),
		Confidence: scoring.Confidence(entities.Distances(all)),
		Citations:  cites,
		Sources:    citation.Sources(cites),
	}, nil
}

func (uc *QueryUseCase) retrieve(ctx context.Context, req entities.QueryRequest) (entities.RetrievalOutcome, error) {
	docs, outcome := uc.selectDocuments(ctx, req.SessionID, req.DocumentIDs)
	if outcome != entities.OutcomeAnswered {
		return emptyOutcome(outcome), nil
	}

	k := req.K
	if k <= 0 {
		k = entities.DefaultTopK
	}
	hits, err := uc.retriever.Retrieve(ctx, searchers(docs), req.Question, k)
	if err != nil {
		return entities.RetrievalOutcome{}, searchError(ctx, "retrieving context", err)
	}
	if len(hits) == 0 {
		return emptyOutcome(entities.OutcomeNoContext), nil
	}

	a := uc.scorer.Assess(hits)
	out := entities.RetrievalOutcome{
		Outcome:    entities.OutcomeAnswered,
		Hits:       hits,
		Confidence: a.Confidence,
		Relevant:   a.Relevant,
		Citations:  citation.FromHits(hits),
	}
	if !a.Relevant {
		out.Outcome = entities.OutcomeUnrelated
		uc.logger.Debug("relevance gate closed",
			zap.String("session_id", req.SessionID),
			zap.Float64("confidence", a.Confidence))
	}
	return out, nil
}

func (uc *QueryUseCase) summaryContext(ctx context.Context, req entities.SummarizeRequest) (entities.RetrievalOutcome, error) {
	docs, outcome := uc.selectDocuments(ctx, req.SessionID, req.DocumentIDs)
	if outcome != entities.OutcomeAnswered {
		return emptyOutcome(outcome), nil
	}

	hits, err := uc.retriever.Retrieve(ctx, searchers(docs), SummaryQuery, entities.DefaultSummaryK)
	if err != nil {
		return entities.RetrievalOutcome{}, searchError(ctx, "retrieving summary context", err)
	}
	if len(hits) == 0 {
		return emptyOutcome(entities.OutcomeNoContext), nil
	}

	a := uc.scorer.Assess(hits)
	return entities.RetrievalOutcome{
		Outcome:    entities.OutcomeAnswered,
		Hits:       hits,
		Confidence: a.Confidence,
		Relevant:   a.Relevant,
		Citations:  citation.FromHits(hits),
	}, nil
}

func (uc *QueryUseCase) compareContext(ctx context.Context, req entities.CompareRequest) ([]entities.DocumentContext, entities.Outcome, error) {
	snap, ok := uc.store.Get(ctx, req.SessionID)
	if !ok {
		return nil, entities.OutcomeNoSession, nil
	}
	docs := filterDocuments(snap.Documents, req.DocumentIDs)
	if len(docs) < 2 {
		return nil, "", fmt.Errorf("%d selected: %w", len(docs), entities.ErrInsufficientDocuments)
	}

	out := make([]entities.DocumentContext, len(docs))
	found := false
	for i, d := range docs {
		hits, err := uc.retriever.Retrieve(ctx, []retrieval.Searcher{d}, CompareQuery, entities.DefaultCompareK)
		if err != nil {
			return nil, "", searchError(ctx, "retrieving context for "+d.Name(), err)
		}
		out[i] = entities.DocumentContext{Document: d.Info(), Hits: hits}
		found = found || len(hits) > 0
	}
	if !found {
		return nil, entities.OutcomeNoContext, nil
	}
	return out, entities.OutcomeAnswered, nil
}

// selectDocuments resolves the live session and applies the filter.
// OutcomeAnswered means documents were selected.
func (uc *QueryUseCase) selectDocuments(ctx context.Context, sessionID string, filter []string) ([]*index.DocumentIndex, entities.Outcome) {
	snap, ok := uc.store.Get(ctx, sessionID)
	if !ok {
		return nil, entities.OutcomeNoSession
	}
	docs := filterDocuments(snap.Documents, filter)
	if len(docs) == 0 {
		return nil, entities.OutcomeNoDocuments
	}
	return docs, entities.OutcomeAnswered
}

// generate calls the completion service under the generation timeout.
func (uc *QueryUseCase) generate(ctx context.Context, op, p string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	raw, err := uc.completion.Complete(gctx, p, uc.cfg.MaxTokens)
	elapsed := time.Since(start)
	uc.recorder.ObserveGeneration(op, elapsed, err)

	if err != nil {
		uc.logger.Warn("generation failed", zap.String("op", op), zap.Duration("elapsed", elapsed), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", entities.ErrGenerationTimeout, uc.cfg.GenerationTimeout)
		}
		return "", fmt.Errorf("%w: %v", entities.ErrGenerationFailed, err)
	}
	return raw, nil
}

// fail records a failed operation and passes err through. Input errors are
// the caller's mistake and are not counted.
func (uc *QueryUseCase) fail(op string, err error) error {
	if !entities.IsInputError(err) {
		uc.recorder.RecordOutcome(op, entities.OutcomeFailed)
	}
	return err
}

// searchError classifies a failed index search. The query is embedded
// inside Search, so anything but cancellation is an embedding failure.
func searchError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %v", what, entities.ErrEmbeddingFailed, err)
}

// filterDocuments keeps documents whose id or name is in filter, in
// snapshot order. An empty filter keeps everything.
func filterDocuments(docs []*index.DocumentIndex, filter []string) []*index.DocumentIndex {
	if len(filter) == 0 {
		return docs
	}
	want := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		want[f] = struct{}{}
	}
	out := make([]*index.DocumentIndex, 0, len(docs))
	for _, d := range docs {
		_, byID := want[d.ID()]
		_, byName := want[d.Name()]
		if byID || byName {
			out = append(out, d)
		}
	}
	return out
}

func searchers(docs []*index.DocumentIndex) []retrieval.Searcher {
	out := make([]retrieval.Searcher, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func emptyOutcome(o entities.Outcome) entities.RetrievalOutcome {
	return entities.RetrievalOutcome{
		Outcome:   o,
		Hits:      []entities.ScoredChunk{},
		Citations: []entities.Citation{},
	}
}

// stateAnswer renders a non-answered outcome as a fixed message.
func stateAnswer(out entities.RetrievalOutcome) entities.Answer {
	return entities.Answer{
		Outcome:    out.Outcome,
		Text:       OutcomeMessage(out.Outcome),
		Confidence: out.Confidence,
		Citations:  []entities.Citation{},
		Sources:    []string{},
	}
}

// OutcomeMessage is the user-facing text for a state outcome.
func OutcomeMessage(o entities.Outcome) string {
	switch o {
	case entities.OutcomeNoSession:
		return MsgNoSession
	case entities.OutcomeNoDocuments:
		return MsgNoDocuments
	case entities.OutcomeNoContext:
		return MsgNoContext
	case entities.OutcomeUnrelated:
		return MsgUnrelated
	}
	return ""
}
