// Package scoring turns raw index distances into similarity and confidence
// values and decides whether retrieved context is relevant enough to answer.
//
// Distances are assumed to be squared Euclidean distances between unit
// vectors, for which 1 - d/2 is the cosine similarity. Other embeddings give
// a biased but still monotonic score.
package scoring

import (
	"math"
	"sort"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// DefaultThreshold is the minimum mean top-3 similarity for an answer.
const DefaultThreshold = 0.25

// topN is how many of the best matches feed confidence and relevance.
const topN = 3

// ToSimilarity maps a distance to [0, 1]. NaN maps to 0.
func ToSimilarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	s := 1 - distance/2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Confidence averages the similarity of the three smallest distances (or all,
// if fewer) and returns it as a percentage rounded to one decimal.
func Confidence(distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	sorted := make([]float64, len(distances))
	copy(sorted, distances)
	sort.Float64s(sorted)

	sims := make([]float64, 0, topN)
	for _, d := range sorted {
		if len(sims) == topN {
			break
		}
		sims = append(sims, ToSimilarity(d))
	}
	return math.Round(mean(sims)*100*10) / 10
}

// IsRelevant reports whether the mean of the top three similarities (or all,
// if fewer) reaches threshold. Empty input is never relevant.
func IsRelevant(similarities []float64, threshold float64) bool {
	if len(similarities) == 0 {
		return false
	}
	sorted := make([]float64, len(similarities))
	copy(sorted, similarities)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return mean(sorted) >= threshold
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
	}
	return sum / float64(len(xs))
}

// Assessment is the scorer's verdict on a set of hits.
type Assessment struct {
	Confidence   float64
	Similarities []float64
	Relevant     bool
}

// Scorer applies a fixed relevance threshold.
type Scorer struct {
	Threshold float64
}

// NewScorer returns a Scorer. A threshold outside [0, 1] uses DefaultThreshold.
func NewScorer(threshold float64) Scorer {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	return Scorer{Threshold: threshold}
}

// Assess scores hits in their given order.
func (s Scorer) Assess(hits []entities.ScoredChunk) Assessment {
	distances := entities.Distances(hits)
	sims := make([]float64, len(distances))
	for i, d := range distances {
		sims[i] = ToSimilarity(d)
	}
	return Assessment{
		Confidence:   Confidence(distances),
		Similarities: sims,
		Relevant:     IsRelevant(sims, s.Threshold),
	}
}
