package verifier

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
)

// scriptedEmbedder returns a fixed vector per known text so cosine scores
// against the source vector (1, 0) can be dialed in exactly.
type scriptedEmbedder struct {
	vectors     map[string][]float32
	oneCalls    int
	batchCalls  int
	totalEmbeds int
}

func (s *scriptedEmbedder) Dim() int             { return 2 }
func (s *scriptedEmbedder) ModelVersion() string { return "scripted-v1" }

func (s *scriptedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	s.oneCalls++
	s.totalEmbeds++
	return s.lookup(text), nil
}

func (s *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.batchCalls++
	s.totalEmbeds += len(texts)
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = s.lookup(t)
	}
	return vectors, nil
}

func (s *scriptedEmbedder) lookup(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return v
	}
	return []float32{1, 0}
}

// withScore builds a unit vector whose cosine similarity to (1, 0) is s.
func withScore(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

func testConfig() *config.VerifierConfig {
	return &config.VerifierConfig{
		SentenceThreshold: 0.75,
		OverallThreshold:  0.80,
		MaxRetries:        2,
		EmbedCacheSize:    64,
	}
}

func sources(similarities ...float64) []models.RetrievalResult {
	results := make([]models.RetrievalResult, len(similarities))
	for i, sim := range similarities {
		results[i] = models.RetrievalResult{
			ChunkID:         string(rune('a' + i)),
			SectionID:       "§ 1",
			Content:         "Quelle.",
			Similarity:      sim,
			SiblingContents: []string{},
		}
	}
	return results
}

func TestVerifier_GroundedAnswerIsVerified(t *testing.T) {
	answer := "Nach § 3 haftet der Mieter. Gemäß Absatz 2 ist die Frist gewahrt. Die Kaution bleibt unberührt."
	embedder := &scriptedEmbedder{vectors: map[string][]float32{
		"Nach § 3 haftet der Mieter.":           withScore(0.92),
		"Gemäß Absatz 2 ist die Frist gewahrt.": withScore(0.88),
		"Die Kaution bleibt unberührt.":         withScore(0.85),
	}}
	vrf, err := New(embedder, testConfig())
	require.NoError(t, err)

	result, err := vrf.Verify(context.Background(), answer, sources(0.95, 0.89, 0.82), nil)
	require.NoError(t, err)

	assert.Equal(t, models.TrustVerified, result.TrustLabel)
	assert.True(t, result.Verified)
	assert.InDelta(t, 0.886, result.Confidence, 0.01)
	assert.Len(t, result.Citations, 2)
	assert.Empty(t, result.UnsupportedClaims)
	assert.Len(t, result.Sentences, 3)
	assert.NotEqual(t, result.VerificationID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestVerifier_UngroundedAnswerIsRejected(t *testing.T) {
	answer := "Der Mieter haftet wohl. Eine Frist scheint gewahrt. Die Kaution verbleibt."
	embedder := &scriptedEmbedder{vectors: map[string][]float32{
		"Der Mieter haftet wohl.":     withScore(0.55),
		"Eine Frist scheint gewahrt.": withScore(0.48),
		"Die Kaution verbleibt.":      withScore(0.62),
	}}
	vrf, err := New(embedder, testConfig())
	require.NoError(t, err)

	result, err := vrf.Verify(context.Background(), answer, sources(0.60), nil)
	require.NoError(t, err)

	assert.Equal(t, models.TrustRejected, result.TrustLabel)
	assert.False(t, result.Verified)
	assert.Less(t, result.Confidence, 0.60)
	assert.Empty(t, result.Citations)
	assert.NotEmpty(t, result.UnsupportedClaims)
}

func TestVerifier_ConfidenceStaysInBounds(t *testing.T) {
	embedder := &scriptedEmbedder{}
	vrf, err := New(embedder, testConfig())
	require.NoError(t, err)

	result, err := vrf.Verify(context.Background(),
		"Nach § 1 Abs. 1 Nr. 2 und § 3 gilt dies gemäß Absatz 4 uneingeschränkt.",
		sources(1.0, 1.0, 1.0), nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.Equal(t, result.Verified, result.Confidence >= 0.80)
}

func TestVerifier_EmptyAnswerShortCircuits(t *testing.T) {
	vrf, err := New(&scriptedEmbedder{}, testConfig())
	require.NoError(t, err)

	result, err := vrf.Verify(context.Background(), "   ", sources(0.9), nil)
	require.NoError(t, err)

	assert.Equal(t, models.TrustRejected, result.TrustLabel)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, models.ReasonEmptyAnswer, result.Reason)
}

func TestVerifier_NoSourcesShortCircuits(t *testing.T) {
	embedder := &scriptedEmbedder{}
	vrf, err := New(embedder, testConfig())
	require.NoError(t, err)

	result, err := vrf.Verify(context.Background(), "Eine Aussage ohne Quellen.", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.TrustRejected, result.TrustLabel)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, models.ReasonNoSources, result.Reason)
	assert.Zero(t, embedder.totalEmbeds)
}

func TestVerifier_AutoRetryUsesRefetchedSources(t *testing.T) {
	cfg := testConfig()
	cfg.AutoRetryThreshold = 0.95

	answer := "Die Haftung ist begrenzt."
	embedder := &scriptedEmbedder{vectors: map[string][]float32{
		"Die Haftung ist begrenzt.": withScore(0.90),
	}}
	vrf, err := New(embedder, cfg)
	require.NoError(t, err)

	refetches := 0
	refetch := func(ctx context.Context, a string, confidence float64) ([]models.RetrievalResult, error) {
		refetches++
		return sources(0.99, 0.98, 0.97), nil
	}

	result, err := vrf.Verify(context.Background(), answer, sources(0.40), refetch)
	require.NoError(t, err)

	assert.Equal(t, cfg.MaxRetries, refetches)
	assert.Equal(t, cfg.MaxRetries, result.Retries)
	assert.Greater(t, result.Confidence, 0.0)
}
