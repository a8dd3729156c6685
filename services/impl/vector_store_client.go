package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type vectorStoreClient struct {
	config     *config.VectorStoreConfig
	httpClient *http.Client
}

// NewVectorStoreClient creates an HTTP client for the vector search API.
func NewVectorStoreClient(cfg *config.VectorStoreConfig) services.VectorStore {
	return &vectorStoreClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

func (c *vectorStoreClient) url(path string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.config.BaseURL, c.config.Collection, path)
}

func (c *vectorStoreClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal vector store request: %w", err)
	}

	respBody, err := doWithRetries(ctx, c.httpClient, http.MethodPost,
		c.url(path), c.config.APIKey, body, c.config.MaxRetries)
	if err != nil {
		return models.WrapError(models.KindExternal, "vector store unavailable", err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse vector store response: %w", err)
	}
	return nil
}

func (c *vectorStoreClient) CreateCollection(ctx context.Context, dim int, recreate bool) error {
	return c.post(ctx, "/create", map[string]any{
		"dim":      dim,
		"metric":   "cosine",
		"recreate": recreate,
	}, nil)
}

func (c *vectorStoreClient) Upsert(ctx context.Context, points []models.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	return c.post(ctx, "/points/upsert", map[string]any{"points": points}, nil)
}

type matchResponse struct {
	Matches []models.Match `json:"matches"`
}

// Match performs similarity search scoped to one document. The backend
// returns hits ordered descending by similarity.
func (c *vectorStoreClient) Match(ctx context.Context, vector []float32, docID string, minSimilarity float64, k int) ([]models.Match, error) {
	var parsed matchResponse
	err := c.post(ctx, "/points/search", map[string]any{
		"vector":         vector,
		"doc_id":         docID,
		"min_similarity": minSimilarity,
		"limit":          k,
	}, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed.Matches, nil
}

type batchContextResponse struct {
	Contexts map[string]models.ChunkContext `json:"contexts"`
}

// BatchContext resolves parent and sibling chunks for all chunk IDs in a
// single backend call. Per-chunk fan-out is a contract violation.
func (c *vectorStoreClient) BatchContext(ctx context.Context, chunkIDs []string) (map[string]models.ChunkContext, error) {
	var parsed batchContextResponse
	err := c.post(ctx, "/points/context", map[string]any{"chunk_ids": chunkIDs}, &parsed)
	if err != nil {
		return nil, err
	}
	if parsed.Contexts == nil {
		parsed.Contexts = map[string]models.ChunkContext{}
	}
	return parsed.Contexts, nil
}

func (c *vectorStoreClient) DeleteByDocID(ctx context.Context, docID string) error {
	return c.post(ctx, "/points/delete", map[string]any{"doc_id": docID}, nil)
}
