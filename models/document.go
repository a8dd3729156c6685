package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	DocumentStatusActive  DocumentStatus = "active"
	DocumentStatusDeleted DocumentStatus = "deleted"
)

// Document is the registry row for an uploaded document. DocHash is the
// SHA-256 of the raw upload bytes and is unique per user; a second upload of
// the same bytes is rejected as a duplicate. Deletion is a soft status flip —
// chunks of a deleted document are no longer retrievable.
type Document struct {
	ID         uuid.UUID      `json:"document_id" gorm:"type:uuid;primaryKey"`
	UserID     string         `json:"user_id" gorm:"index;uniqueIndex:idx_documents_user_hash"`
	Filename   string         `json:"filename" gorm:"not null"`
	DocHash    string         `json:"doc_hash" gorm:"uniqueIndex:idx_documents_user_hash;not null"`
	SizeBytes  int64          `json:"size_bytes"`
	ChunkCount int            `json:"chunk_count"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	Status     DocumentStatus `json:"status" gorm:"default:active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// AuditRecord is one row of the per-document analysis history. It carries no
// PII: the query and answer appear only as hashes.
type AuditRecord struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	DocumentID uuid.UUID      `json:"document_id" gorm:"type:uuid;index"`
	RequestID  string         `json:"request_id"`
	QueryHash  string         `json:"query_hash"`
	AnswerHash string         `json:"answer_hash"`
	Confidence float64        `json:"confidence"`
	TrustLabel TrustLabel     `json:"trust_label"`
	Citations  datatypes.JSON `json:"citations,omitempty"`
	TokensUsed int            `json:"tokens_used"`
	LatencyMs  int64          `json:"latency_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}
