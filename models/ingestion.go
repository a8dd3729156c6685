package models

import "time"

type IngestionStatus string

const (
	IngestionRunning     IngestionStatus = "running"
	IngestionCompleted   IngestionStatus = "completed"
	IngestionFailed      IngestionStatus = "failed"
	IngestionInterrupted IngestionStatus = "interrupted"
)

// IngestionState is the persisted checkpoint of one bulk-ingestion run.
// Counters are monotonically non-decreasing within a run; the state is
// rewritten atomically after each stage and after each batch within a stage.
type IngestionState struct {
	RunID               string          `json:"run_id"`
	Status              IngestionStatus `json:"status"`
	StartTime           time.Time       `json:"start_time"`
	DocumentsFetched    int             `json:"documents_fetched"`
	DocumentsNormalized int             `json:"documents_normalized"`
	DocumentsChunked    int             `json:"documents_chunked"`
	ChunksCreated       int             `json:"chunks_created"`
	VectorsUploaded     int             `json:"vectors_uploaded"`
	LastUpdated         time.Time       `json:"last_updated"`
	LastError           string          `json:"last_error,omitempty"`
	ErrorCount          int             `json:"error_count"`
}

// CrawledDocument is the normalized record every corpus crawler produces,
// independent of the crawler's wire format.
type CrawledDocument struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	Source      string            `json:"source"`
	CreatedDate time.Time         `json:"created_date"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NormalizedDocument is a crawled document after text normalization.
type NormalizedDocument struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SkippedDocument records a document dropped during ingestion, with the stage
// and reason, so a run's losses are auditable.
type SkippedDocument struct {
	DocID     string    `json:"doc_id"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
