package models

import (
	"time"

	"github.com/google/uuid"
)

// TrustLabel grades a verified answer.
type TrustLabel string

const (
	TrustVerified TrustLabel = "Verified"
	TrustReview   TrustLabel = "Review"
	TrustRejected TrustLabel = "Rejected"
)

// Reason codes for short-circuited verifications.
const (
	ReasonEmptyAnswer = "empty_answer"
	ReasonNoSources   = "no_sources"
)

// SourceFingerprint records the SHA-256 hash of one source's text at the
// moment of verification. The hash is deterministic on the text.
type SourceFingerprint struct {
	SourceID  string            `json:"source_id"`
	Hash      string            `json:"hash"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// VerificationRecord is the audit trail entry for one verification run.
// IsValid starts true and flips to false when any referenced source text is
// superseded by a different version.
type VerificationRecord struct {
	VerificationID uuid.UUID  `json:"verification_id"`
	AnswerHash     string     `json:"answer_hash"`
	SourceHashes   []string   `json:"source_hashes"`
	Confidence     float64    `json:"confidence"`
	TrustLabel     TrustLabel `json:"trust_label"`
	CreatedAt      time.Time  `json:"created_at"`
	IsValid        bool       `json:"is_valid"`
}

// SentenceVerification is the per-sentence outcome of the semantic audit.
type SentenceVerification struct {
	Text        string  `json:"text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	HasCitation bool    `json:"has_citation"`
	BestScore   float64 `json:"best_score"`
	Verified    bool    `json:"verified"`
}

// ConfidenceBreakdown exposes the individual fused signals.
type ConfidenceBreakdown struct {
	Semantic  float64 `json:"semantic"`
	Retrieval float64 `json:"retrieval"`
	Citations float64 `json:"citations"`
	Coverage  float64 `json:"coverage"`
}

// VerificationResult is the complete outcome of verifying one answer against
// its retrieval results.
type VerificationResult struct {
	VerificationID    uuid.UUID              `json:"verification_id"`
	Confidence        float64                `json:"confidence"`
	Verified          bool                   `json:"verified"`
	TrustLabel        TrustLabel             `json:"trust_label"`
	Breakdown         ConfidenceBreakdown    `json:"breakdown"`
	Sentences         []SentenceVerification `json:"sentences"`
	Citations         []string               `json:"citations"`
	UnsupportedClaims []string               `json:"unsupported_claims"`
	Reason            string                 `json:"reason,omitempty"`
	Retries           int                    `json:"retries"`
}
