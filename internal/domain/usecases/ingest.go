package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/index"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/session"
)

const defaultDocumentName = "document"

// IngestUseCase turns parsed records into a document index inside a session.
// Single Responsibility: Only ingestion logic.
type IngestUseCase struct {
	store   *session.Store
	builder ports.IndexBuilder
	chunker chunker
	common
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
// Dependency Injection: Adapters are passed in, not created here.
func NewIngestUseCase(
	store *session.Store,
	builder ports.IndexBuilder,
	chunkSize, chunkOverlap int,
	opts ...Option,
) *IngestUseCase {
	return &IngestUseCase{
		store:   store,
		builder: builder,
		chunker: newChunker(chunkSize, chunkOverlap),
		common:  newCommon(opts),
	}
}

// Ingest chunks the records, builds their index and attaches it to the
// session, creating the session if needed.
func (uc *IngestUseCase) Ingest(ctx context.Context, req entities.IngestRequest) (entities.IngestResult, error) {
	uc.store.SweepExpired(ctx)

	release, err := uc.limiter.Acquire(ctx)
	if err != nil {
		return entities.IngestResult{}, err
	}
	defer release()

	name := documentName(req)
	docID := uuid.NewString()

	// 1. Chunk the records
	chunks := uc.chunker.split(docID, name, req.Records)
	if len(chunks) == 0 {
		return entities.IngestResult{}, entities.ErrEmptyInput
	}

	// 2. Embed and index via port (adapter)
	doc, err := index.Build(ctx, uc.builder, docID, name, chunks)
	if err != nil {
		return entities.IngestResult{}, err
	}

	// 3. Attach to the session
	sessionID, err := uc.store.AddDocument(ctx, req.SessionID, doc)
	if err != nil {
		if rerr := doc.Release(ctx); rerr != nil {
			uc.logger.Warn("releasing rejected document", zap.String("document_id", docID), zap.Error(rerr))
		}
		return entities.IngestResult{}, fmt.Errorf("attaching document: %w", err)
	}

	uc.logger.Info("document ingested",
		zap.String("session_id", sessionID),
		zap.String("document_id", docID),
		zap.String("name", name),
		zap.Int("chunks", len(chunks)))

	return entities.IngestResult{
		SessionID:  sessionID,
		DocumentID: docID,
		ChunkCount: len(chunks),
	}, nil
}

func documentName(req entities.IngestRequest) string {
	if name := strings.TrimSpace(req.DocumentName); name != "" {
		return name
	}
	for _, r := range req.Records {
		if src := strings.TrimSpace(r.Source); src != "" {
			return src
		}
	}
	return defaultDocumentName
}
