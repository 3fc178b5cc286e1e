// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "time"

// Record is one unit of parser output: a span of text, its 0-based page
// (nil for non-paginated sources) and the display name of its source.
type Record struct {
	Text   string `json:"text"`
	Page   *int   `json:"page,omitempty"`
	Source string `json:"source"`
}

// Chunk is an immutable unit of retrievable text.
// Text is non-empty and already normalized before storage.
type Chunk struct {
	ID         string
	Text       string
	SourceName string
	DocumentID string
	Page       *int // 0-based, nil when the source has no pages
}

// ScoredChunk is a search hit. Smaller distance means more similar.
type ScoredChunk struct {
	Chunk    Chunk
	Distance float64
}

// Citation identifies where supporting text came from.
// Page is 1-based; zero means the source has no pages.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
}

// DocumentInfo describes an indexed document to callers.
type DocumentInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// PageRef returns a pointer to p, for building paginated records.
func PageRef(p int) *int {
	return &p
}

// Chunks extracts the chunk part of a hit list.
func Chunks(hits []ScoredChunk) []Chunk {
	out := make([]Chunk, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk
	}
	return out
}

// Distances extracts the distance part of a hit list.
func Distances(hits []ScoredChunk) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		out[i] = h.Distance
	}
	return out
}
