package services

import (
	"context"
	"time"

	"github.com/lexrag-backend/models"
)

// Embedder converts text into dense vectors. EmbedBatch preserves input
// order. ModelVersion identifies the embedding model so cache keys can be
// scoped to it.
type Embedder interface {
	Dim() int
	ModelVersion() string
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the similarity-search backend. Match returns hits ordered
// descending by similarity. BatchContext resolves the hierarchical
// neighbourhood of many chunks in a single backend call; callers must never
// loop it per chunk.
type VectorStore interface {
	CreateCollection(ctx context.Context, dim int, recreate bool) error
	Upsert(ctx context.Context, points []models.VectorPoint) error
	Match(ctx context.Context, vector []float32, docID string, minSimilarity float64, k int) ([]models.Match, error)
	BatchContext(ctx context.Context, chunkIDs []string) (map[string]models.ChunkContext, error)
	DeleteByDocID(ctx context.Context, docID string) error
}

// KVStore is the shared key-value cache. Get returns ok=false on a miss
// without an error; cache errors never fail a request.
type KVStore interface {
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteMany(ctx context.Context, keys []string) (int, error)
	PoolStats() models.KVPoolStats
	Ping(ctx context.Context) error
}

// LLMClient invokes the external generative model. Only anonymized text may
// ever cross this boundary.
type LLMClient interface {
	Analyze(ctx context.Context, anonQuery, anonContext, requestID string) (*models.LLMResult, error)
}

// OCRClient is the remote GPU OCR service, consumed by the indexer for
// scanned documents.
type OCRClient interface {
	IsAvailable(ctx context.Context) bool
	Process(ctx context.Context, pdfBytes []byte, enableHandwriting bool, requestID string) (*models.OCRResult, error)
}

// PIIDetector yields typed PII spans in document order; spans never overlap.
// Implementations are pluggable — the pipeline only depends on this contract.
type PIIDetector interface {
	Detect(text string) []models.PIISpan
}
