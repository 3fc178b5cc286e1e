package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

func TestToSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, ToSimilarity(0))
	assert.Equal(t, 0.0, ToSimilarity(2))
	assert.Equal(t, 0.0, ToSimilarity(4))
	assert.Equal(t, 0.75, ToSimilarity(0.5))
	assert.Equal(t, 0.0, ToSimilarity(math.NaN()))
	assert.Equal(t, 0.0, ToSimilarity(math.Inf(1)))
	assert.Equal(t, 1.0, ToSimilarity(-1), "negative distances clamp")
}

func TestToSimilarity_Bounded(t *testing.T) {
	for d := 0.0; d <= 10; d += 0.125 {
		s := ToSimilarity(d)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		distances []float64
		want      float64
	}{
		{"empty", nil, 0},
		{"uses three smallest", []float64{0.0, 0.5, 1.0, 3.0}, 75.0},
		{"order independent", []float64{3.0, 1.0, 0.0, 0.5}, 75.0},
		{"fewer than three", []float64{0.5}, 75.0},
		{"two values", []float64{0, 1}, 75.0},
		{"rounds to one decimal", []float64{0.1, 0.2, 0.3}, 90.0},
		{"all far", []float64{5, 6, 7}, 0},
		{"one third", []float64{0, 2, 2}, 33.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.distances))
		})
	}
}

func TestConfidence_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 0}
	Confidence(in)
	assert.Equal(t, []float64{3, 1, 0}, in)
}

func TestIsRelevant(t *testing.T) {
	assert.False(t, IsRelevant(nil, DefaultThreshold))
	assert.True(t, IsRelevant([]float64{0.25}, DefaultThreshold))
	assert.False(t, IsRelevant([]float64{0.24}, DefaultThreshold))
	assert.True(t, IsRelevant([]float64{0.1, 0.9, 0.3, 0.0}, 0.4), "top three are 0.9, 0.3, 0.1")
	assert.False(t, IsRelevant([]float64{0.1, 0.2, 0.3}, 0.3))
}

func TestScorer_Assess(t *testing.T) {
	hits := []entities.ScoredChunk{
		{Distance: 0.0},
		{Distance: 0.5},
		{Distance: 1.0},
		{Distance: 3.0},
	}
	got := NewScorer(DefaultThreshold).Assess(hits)

	assert.Equal(t, 75.0, got.Confidence)
	assert.Equal(t, []float64{1, 0.75, 0.5, 0}, got.Similarities)
	assert.True(t, got.Relevant)
}

func TestScorer_AssessIrrelevant(t *testing.T) {
	hits := []entities.ScoredChunk{{Distance: 1.8}, {Distance: 1.9}}
	got := NewScorer(DefaultThreshold).Assess(hits)

	assert.False(t, got.Relevant)
	assert.Equal(t, 7.5, got.Confidence)
}

func TestScorer_AssessEmpty(t *testing.T) {
	got := NewScorer(DefaultThreshold).Assess(nil)
	assert.Equal(t, 0.0, got.Confidence)
	assert.False(t, got.Relevant)
	assert.Empty(t, got.Similarities)
}

func TestNewScorer_InvalidThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewScorer(-1).Threshold)
	assert.Equal(t, DefaultThreshold, NewScorer(2).Threshold)
	assert.Equal(t, 0.5, NewScorer(0.5).Threshold)
}
