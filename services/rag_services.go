package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/lexrag-backend/models"
)

// Parser converts raw legal text into an ordered section tree.
type Parser interface {
	Parse(text string) []models.Section
	ExtractSectionIDs(text string) []string
}

// Chunker converts sections into embedding-ready chunks.
type Chunker interface {
	Chunk(sections []models.Section, docID string) []models.Chunk
}

// Retriever answers a query about one document with context-enriched results.
type Retriever interface {
	Retrieve(ctx context.Context, query, docID string, topK int, matchThreshold float64) ([]models.RetrievalResult, error)
	FormatContext(results []models.RetrievalResult) string
	InvalidateDocument(ctx context.Context, docID string) error
}

// Anonymizer guarantees no PII crosses the LLM boundary and restores it on
// the way back. Anonymize is deterministic for identical inputs within a
// request; Deanonymize deletes the mapping after a successful restore.
type Anonymizer interface {
	Anonymize(ctx context.Context, text, requestID string) (string, map[string]string, error)
	Deanonymize(ctx context.Context, text, requestID string) (string, error)
	VerifyNoLeakage(text string) bool
}

// AnalyzeService runs the full question-answering pipeline for one request.
type AnalyzeService interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error)
}

// IndexerService ingests one uploaded document into the registry and the
// vector index.
type IndexerService interface {
	Index(ctx context.Context, userID, filename string, raw []byte) (*models.IndexResponse, error)
	Delete(ctx context.Context, userID string, docID uuid.UUID) error
}

// DocumentService is the registry of uploaded documents and their analysis
// history.
type DocumentService interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, docID uuid.UUID) (*models.Document, error)
	FindByHash(ctx context.Context, userID, docHash string) (*models.Document, error)
	SoftDelete(ctx context.Context, docID uuid.UUID) error
	RecordAudit(ctx context.Context, rec *models.AuditRecord) error
	History(ctx context.Context, docID uuid.UUID, limit int) ([]models.AuditRecord, error)
	Ping(ctx context.Context) error
}
