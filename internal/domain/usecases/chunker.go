package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/sanitize"
)

// Chunking defaults, in bytes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// chunker splits records into overlapping chunks at word boundaries.
// Chunks never span records, so each keeps its record's page.
type chunker struct {
	size    int
	overlap int
}

func newChunker(size, overlap int) chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return chunker{size: size, overlap: overlap}
}

// split chunks every record of one document. Record text is normalized for
// character-spaced runs first.
func (c chunker) split(documentID, sourceName string, records []entities.Record) []entities.Chunk {
	var chunks []entities.Chunk
	for _, rec := range records {
		content := strings.TrimSpace(sanitize.NormalizeSpacedText(rec.Text))
		for _, text := range c.splitText(content) {
			chunks = append(chunks, entities.Chunk{
				ID:         generateChunkID(documentID, len(chunks)),
				Text:       text,
				SourceName: sourceName,
				DocumentID: documentID,
				Page:       copyPage(rec.Page),
			})
		}
	}
	return chunks
}

func (c chunker) splitText(content string) []string {
	if content == "" {
		return nil
	}

	var out []string
	start := 0
	for start < len(content) {
		end := start + c.size
		if end > len(content) {
			end = len(content)
		}

		// Try to break at word boundary
		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			} else {
				end = runeBoundary(content, start, end)
			}
		}

		if piece := strings.TrimSpace(content[start:end]); piece != "" {
			out = append(out, piece)
		}
		if end >= len(content) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		for next < len(content) && !utf8.RuneStart(content[next]) {
			next++
		}
		start = next
	}
	return out
}

func copyPage(p *int) *int {
	if p == nil {
		return nil
	}
	return entities.PageRef(*p)
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}

// runeBoundary moves end back to a rune start, or forward past one rune when
// that would leave the chunk empty.
func runeBoundary(content string, start, end int) int {
	for end > start && !utf8.RuneStart(content[end]) {
		end--
	}
	if end == start {
		_, size := utf8.DecodeRuneInString(content[start:])
		end = start + size
	}
	return end
}
