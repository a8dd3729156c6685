package models

import "github.com/google/uuid"

// Match is one similarity hit from the vector store, ordered descending by
// similarity.
type Match struct {
	ChunkID    string  `json:"chunk_id"`
	SectionID  string  `json:"section_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// ContextChunk is a neighbour chunk returned by the batched context lookup.
type ContextChunk struct {
	ChunkID   string `json:"chunk_id"`
	SectionID string `json:"section_id"`
	Content   string `json:"content"`
}

// ChunkContext is the hierarchical neighbourhood of a single chunk: the chunk
// itself, its parent section chunk (if any) and its siblings.
type ChunkContext struct {
	Target   *ContextChunk  `json:"target,omitempty"`
	Parent   *ContextChunk  `json:"parent,omitempty"`
	Siblings []ContextChunk `json:"siblings"`
}

// RetrievalResult is one retrieved chunk enriched with hierarchical context.
// Siblings never include the chunk itself or its parent.
type RetrievalResult struct {
	ChunkID         string   `json:"chunk_id"`
	SectionID       string   `json:"section_id"`
	Content         string   `json:"content"`
	Similarity      float64  `json:"similarity"`
	ParentContent   *string  `json:"parent_content,omitempty"`
	SiblingContents []string `json:"sibling_contents"`
}

// AnalyzeRequest is the input of the analyze pipeline.
type AnalyzeRequest struct {
	FileID uuid.UUID `json:"fileId"`
	Query  string    `json:"query"`
	TopK   int       `json:"topK,omitempty"`
}

// AnalyzeMetadata carries per-request observability fields.
type AnalyzeMetadata struct {
	LatencyMs             int64  `json:"latencyMs"`
	TokensUsed            int    `json:"tokensUsed"`
	ChunksRetrieved       int    `json:"chunksRetrieved"`
	ModelVersion          string `json:"modelVersion"`
	PIIEntitiesAnonymized int    `json:"piiEntitiesAnonymized"`
}

// AnalyzeResponse is the verified answer returned to the caller.
type AnalyzeResponse struct {
	Answer            string          `json:"answer"`
	Citations         []string        `json:"citations"`
	Confidence        float64         `json:"confidence"`
	RequestID         string          `json:"requestId"`
	UnsupportedClaims []string        `json:"unsupportedClaims"`
	Metadata          AnalyzeMetadata `json:"metadata"`
}

// IndexResponse is returned by the upload endpoint.
type IndexResponse struct {
	DocumentID    uuid.UUID `json:"documentId"`
	Filename      string    `json:"filename"`
	ChunksCreated int       `json:"chunksCreated"`
	Status        string    `json:"status"`
}

// LLMResult is the generative model's raw output for one request.
type LLMResult struct {
	Answer       string `json:"answer"`
	TokensUsed   int    `json:"tokens_used"`
	ModelVersion string `json:"model_version"`
}

// OCRResult is the text extracted from a scanned document by the OCR service.
type OCRResult struct {
	Text       string  `json:"text"`
	Pages      int     `json:"pages"`
	Confidence float64 `json:"confidence"`
}

// PIISpan is one detected PII occurrence. Spans are reported in document
// order and never overlap.
type PIISpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// KVPoolStats mirrors the KV connection pool counters for metrics export.
type KVPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}
