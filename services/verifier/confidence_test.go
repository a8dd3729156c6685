package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/models"
)

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeights.Validate())
	assert.NoError(t, Weights{Semantic: 0.5, Retrieval: 0.3, Citations: 0.15, Coverage: 0.055}.Validate())
	assert.Error(t, Weights{Semantic: 0.5, Retrieval: 0.3}.Validate())

	_, err := NewConfidenceEngine(Weights{Semantic: 1, Retrieval: 1}, 0.75)
	assert.Error(t, err)
}

func TestConfidenceEngine_SemanticPenalties(t *testing.T) {
	engine, err := NewConfidenceEngine(DefaultWeights, 0.75)
	require.NoError(t, err)

	// Uniform high scores: no variance or low-score penalty.
	_, breakdown := engine.Fuse([]float64{0.9, 0.9, 0.9}, sources(0.9), 1, 3)
	assert.InDelta(t, 0.9, breakdown.Semantic, 1e-9)

	// One low score pulls the mean down and adds a low-ratio penalty.
	_, lowBreakdown := engine.Fuse([]float64{0.9, 0.9, 0.3}, sources(0.9), 1, 2)
	assert.Less(t, lowBreakdown.Semantic, 0.7)

	// All-zero scores clamp at zero instead of going negative.
	_, zeroBreakdown := engine.Fuse([]float64{0.0, 0.0}, sources(0.9), 0, 0)
	assert.Zero(t, zeroBreakdown.Semantic)
}

func TestConfidenceEngine_RetrievalSignal(t *testing.T) {
	engine, err := NewConfidenceEngine(DefaultWeights, 0.75)
	require.NoError(t, err)

	// Top-3 average with more than three results.
	_, b := engine.Fuse([]float64{0.9}, sources(0.9, 0.8, 0.7, 0.1, 0.1), 0, 1)
	assert.InDelta(t, 0.8, b.Retrieval, 1e-9)

	// Fewer than three: average of all.
	_, b = engine.Fuse([]float64{0.9}, sources(0.6, 0.8), 0, 1)
	assert.InDelta(t, 0.7, b.Retrieval, 1e-9)

	// None: neutral.
	_, b = engine.Fuse([]float64{0.9}, nil, 0, 1)
	assert.InDelta(t, 0.5, b.Retrieval, 1e-9)
}

func TestConfidenceEngine_CitationLadder(t *testing.T) {
	assert.InDelta(t, 0.3, citationScore(0), 1e-9)
	assert.InDelta(t, 0.7, citationScore(1), 1e-9)
	assert.InDelta(t, 0.85, citationScore(2), 1e-9)
	assert.InDelta(t, 0.95, citationScore(4), 1e-9)
	assert.InDelta(t, 1.0, citationScore(10), 1e-9)
}

func TestConfidenceEngine_FinalIsClamped(t *testing.T) {
	engine, err := NewConfidenceEngine(DefaultWeights, 0.75)
	require.NoError(t, err)

	confidence, _ := engine.Fuse([]float64{1, 1, 1}, sources(1, 1, 1), 10, 3)
	assert.LessOrEqual(t, confidence, 1.0)
	assert.GreaterOrEqual(t, confidence, 0.0)
}

func TestLabelFor_Thresholds(t *testing.T) {
	assert.Equal(t, models.TrustVerified, LabelFor(0.80, 0.80))
	assert.Equal(t, models.TrustVerified, LabelFor(0.95, 0.80))
	assert.Equal(t, models.TrustReview, LabelFor(0.79, 0.80))
	assert.Equal(t, models.TrustReview, LabelFor(0.60, 0.80))
	assert.Equal(t, models.TrustRejected, LabelFor(0.59, 0.80))
	assert.Equal(t, models.TrustRejected, LabelFor(0.0, 0.80))
}
