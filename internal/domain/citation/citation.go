// Package citation turns retrieved chunks into (source, page) references.
package citation

import (
	"sort"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// Build returns one citation per distinct (source, page) pair, sorted
// ascending. Pages are 1-based; chunks without a page cite the source only.
// The result is never nil.
func Build(chunks []entities.Chunk) []entities.Citation {
	seen := make(map[entities.Citation]struct{}, len(chunks))
	out := make([]entities.Citation, 0, len(chunks))
	for _, c := range chunks {
		cit := entities.Citation{Source: c.SourceName}
		if c.Page != nil && *c.Page >= 0 {
			cit.Page = *c.Page + 1
		}
		if _, dup := seen[cit]; dup {
			continue
		}
		seen[cit] = struct{}{}
		out = append(out, cit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Page < out[j].Page
	})
	return out
}

// FromHits builds citations for scored hits.
func FromHits(hits []entities.ScoredChunk) []entities.Citation {
	return Build(entities.Chunks(hits))
}

// Sources lists the distinct source names cited, in order.
func Sources(citations []entities.Citation) []string {
	out := make([]string, 0, len(citations))
	for i, c := range citations {
		if i > 0 && citations[i-1].Source == c.Source {
			continue
		}
		out = append(out, c.Source)
	}
	return out
}
