package verifier

import (
	"fmt"
	"math"
	"sort"

	"github.com/lexrag-backend/models"
)

// Weights fuses the four confidence signals. The components must sum to
// 1 ± 0.01.
type Weights struct {
	Semantic  float64
	Retrieval float64
	Citations float64
	Coverage  float64
}

// DefaultWeights is the production fusion weighting.
var DefaultWeights = Weights{Semantic: 0.60, Retrieval: 0.25, Citations: 0.10, Coverage: 0.05}

// Validate checks that the weights form a proper convex combination.
func (w Weights) Validate() error {
	sum := w.Semantic + w.Retrieval + w.Citations + w.Coverage
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("confidence weights must sum to 1, got %.4f", sum)
	}
	return nil
}

// ConfidenceEngine fuses sentence scores, retrieval quality, citation
// presence, and coverage into one confidence value.
type ConfidenceEngine struct {
	weights           Weights
	sentenceThreshold float64
}

func NewConfidenceEngine(weights Weights, sentenceThreshold float64) (*ConfidenceEngine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &ConfidenceEngine{weights: weights, sentenceThreshold: sentenceThreshold}, nil
}

// Fuse computes the final confidence and its breakdown. Result is clamped to
// [0, 1].
func (e *ConfidenceEngine) Fuse(sentenceScores []float64, results []models.RetrievalResult, citationCount, verifiedSentences int) (float64, models.ConfidenceBreakdown) {
	breakdown := models.ConfidenceBreakdown{
		Semantic:  e.semanticScore(sentenceScores),
		Retrieval: retrievalScore(results),
		Citations: citationScore(citationCount),
		Coverage:  coverageScore(verifiedSentences, len(sentenceScores)),
	}

	confidence := e.weights.Semantic*breakdown.Semantic +
		e.weights.Retrieval*breakdown.Retrieval +
		e.weights.Citations*breakdown.Citations +
		e.weights.Coverage*breakdown.Coverage

	return clamp01(confidence), breakdown
}

// semanticScore penalizes the mean sentence score for variance (capped at
// 0.15) and for the fraction of sentences below the threshold.
func (e *ConfidenceEngine) semanticScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	low := 0
	for _, s := range scores {
		sum += s
		if s < e.sentenceThreshold {
			low++
		}
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(scores))

	lowRatio := float64(low) / float64(len(scores))
	score := mean - math.Min(0.15, 0.5*variance) - 0.20*lowRatio
	if score < 0 {
		return 0
	}
	return score
}

// retrievalScore averages the top-3 similarities; with fewer results it
// averages all of them, and with none it is neutral at 0.5.
func retrievalScore(results []models.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0.5
	}
	sims := make([]float64, len(results))
	for i, r := range results {
		sims[i] = r.Similarity
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
	n := len(sims)
	if n > 3 {
		n = 3
	}
	var sum float64
	for _, s := range sims[:n] {
		sum += s
	}
	return sum / float64(n)
}

func citationScore(n int) float64 {
	switch {
	case n == 0:
		return 0.3
	case n == 1:
		return 0.7
	case n == 2:
		return 0.85
	default:
		return math.Min(1, 0.85+0.05*float64(n-2))
	}
}

func coverageScore(verified, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(verified) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LabelFor maps a confidence value to a trust label.
func LabelFor(confidence, overallThreshold float64) models.TrustLabel {
	switch {
	case confidence >= overallThreshold:
		return models.TrustVerified
	case confidence >= 0.60:
		return models.TrustReview
	default:
		return models.TrustRejected
	}
}
