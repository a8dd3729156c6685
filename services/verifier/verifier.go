// Package verifier audits generated answers sentence by sentence against the
// retrieval results that produced them, fusing semantic similarity, retrieval
// quality, citation presence, and coverage into a confidence score and trust
// label. Sources and answers are fingerprinted so later source mutations
// invalidate prior verifications.
package verifier

import (
	"context"
	"log"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

// RefetchFunc lets a caller supply fresh sources for the auto-retry loop.
type RefetchFunc func(ctx context.Context, answer string, confidence float64) ([]models.RetrievalResult, error)

// Verifier is the sentence-level answer auditor.
type Verifier struct {
	splitter  SentenceSplitter
	extractor CitationExtractor
	matcher   *SemanticMatcher
	engine    *ConfidenceEngine
	tracker   *FingerprintTracker
	config    *config.VerifierConfig
}

// New creates a verifier with the default splitter, citation extractor, and
// fusion weights.
func New(embedder services.Embedder, cfg *config.VerifierConfig) (*Verifier, error) {
	engine, err := NewConfidenceEngine(DefaultWeights, cfg.SentenceThreshold)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		splitter:  SplitterFor("de", "legal"),
		extractor: NewCitationExtractor(),
		matcher:   NewSemanticMatcher(embedder, cfg.EmbedCacheSize),
		engine:    engine,
		tracker:   NewFingerprintTracker(),
		config:    cfg,
	}, nil
}

// Tracker exposes the fingerprint tracker so indexing can invalidate
// verifications when a source document changes.
func (v *Verifier) Tracker() *FingerprintTracker {
	return v.tracker
}

// Verify audits an answer against its sources. When confidence lands below
// the retry threshold and a refetch callback is supplied, verification is
// re-run with fresh sources up to the configured maximum.
func (v *Verifier) Verify(ctx context.Context, answer string, results []models.RetrievalResult, refetch RefetchFunc) (*models.VerificationResult, error) {
	result, err := v.verifyOnce(ctx, answer, results)
	if err != nil {
		return nil, err
	}

	for result.Retries < v.config.MaxRetries &&
		refetch != nil &&
		result.Reason == "" &&
		result.Confidence < v.config.AutoRetryThreshold {

		fresh, err := refetch(ctx, answer, result.Confidence)
		if err != nil {
			log.Printf("Warning: source refetch failed, keeping previous verification: %v", err)
			break
		}
		retries := result.Retries + 1
		result, err = v.verifyOnce(ctx, answer, fresh)
		if err != nil {
			return nil, err
		}
		result.Retries = retries
		results = fresh
	}

	v.fingerprint(answer, results, result)
	return result, nil
}

func (v *Verifier) verifyOnce(ctx context.Context, answer string, results []models.RetrievalResult) (*models.VerificationResult, error) {
	sentences := v.splitter.Split(answer)
	if len(sentences) == 0 {
		return rejected(models.ReasonEmptyAnswer), nil
	}
	if len(results) == 0 {
		return rejected(models.ReasonNoSources), nil
	}

	sourceTexts := make([]string, 0, len(results))
	for _, r := range results {
		sourceTexts = append(sourceTexts, sourceText(r))
	}
	sourceVectors, err := v.matcher.SourceVectors(ctx, sourceTexts)
	if err != nil {
		return nil, err
	}

	verifications := make([]models.SentenceVerification, len(sentences))
	scores := make([]float64, len(sentences))
	verified := 0
	var unsupported []string
	for i, s := range sentences {
		score, err := v.matcher.BestScore(ctx, s.Text, sourceVectors)
		if err != nil {
			return nil, err
		}
		ok := score >= v.config.SentenceThreshold
		if ok {
			verified++
		} else {
			unsupported = append(unsupported, s.Text)
		}
		scores[i] = score
		verifications[i] = models.SentenceVerification{
			Text:        s.Text,
			Start:       s.Start,
			End:         s.End,
			HasCitation: s.HasCitation,
			BestScore:   score,
			Verified:    ok,
		}
	}

	citations := v.extractor.Extract(answer)
	confidence, breakdown := v.engine.Fuse(scores, results, len(citations), verified)

	return &models.VerificationResult{
		Confidence:        confidence,
		Verified:          confidence >= v.config.OverallThreshold,
		TrustLabel:        LabelFor(confidence, v.config.OverallThreshold),
		Breakdown:         breakdown,
		Sentences:         verifications,
		Citations:         citations,
		UnsupportedClaims: unsupported,
	}, nil
}

func (v *Verifier) fingerprint(answer string, results []models.RetrievalResult, result *models.VerificationResult) {
	sources := make(map[string]string, len(results))
	for _, r := range results {
		sources[r.ChunkID] = sourceText(r)
	}
	rec := v.tracker.Record(answer, sources, result.Confidence, result.TrustLabel)
	result.VerificationID = rec.VerificationID
}

// sourceText is the snippet a sentence is matched against: the chunk content
// plus its parent's, when present.
func sourceText(r models.RetrievalResult) string {
	if r.ParentContent == nil {
		return r.Content
	}
	return *r.ParentContent + "\n" + r.Content
}

func rejected(reason string) *models.VerificationResult {
	return &models.VerificationResult{
		Confidence:        0,
		Verified:          false,
		TrustLabel:        models.TrustRejected,
		Sentences:         []models.SentenceVerification{},
		Citations:         []string{},
		UnsupportedClaims: []string{},
		Reason:            reason,
	}
}
