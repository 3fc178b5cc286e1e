// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionService generates text from a prompt.
// Implementations must honour ctx cancellation; callers apply the timeout.
type CompletionService interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Hit is a raw nearest-neighbour match returned by a VectorIndex.
type Hit struct {
	ChunkID  string
	Distance float64 // non-negative, smaller = more similar
}

// VectorIndex is the nearest-neighbour capability over one document's chunks.
// Implementations must be safe to call from multiple goroutines and
// deterministic for a fixed index and query.
type VectorIndex interface {
	// Search returns up to k hits ordered by ascending distance.
	Search(ctx context.Context, query string, k int) ([]Hit, error)

	// Release frees the index. Searches after Release return no hits.
	Release(ctx context.Context) error
}

// IndexBuilder embeds chunks and builds a VectorIndex over them.
type IndexBuilder interface {
	Build(ctx context.Context, documentID string, chunks []entities.Chunk) (VectorIndex, error)
}

// DocumentLoader reads a file and returns its parsed records.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) ([]entities.Record, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// PageParser extracts per-page text from binary document formats (PDF).
type PageParser interface {
	ParsePages(ctx context.Context, data []byte, filename string) ([]string, error)
}

// SessionObserver is notified after a session transition commits.
// Calls happen outside the session store lock.
type SessionObserver interface {
	OnSessionEvent(ctx context.Context, event entities.SessionEvent)
}

// Recorder collects operational measurements from the use cases.
type Recorder interface {
	RecordOutcome(op string, outcome entities.Outcome)
	ObserveGeneration(op string, elapsed time.Duration, err error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// NopRecorder discards measurements.
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(string, entities.Outcome)         {}
func (NopRecorder) ObserveGeneration(string, time.Duration, error) {}
