package impl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type embeddingClient struct {
	config     *config.EmbeddingConfig
	httpClient *http.Client
}

// NewEmbeddingClient creates an HTTP client for the remote embedding service.
func NewEmbeddingClient(cfg *config.EmbeddingConfig) services.Embedder {
	return &embeddingClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

func (c *embeddingClient) Dim() int {
	return c.config.Dim
}

func (c *embeddingClient) ModelVersion() string {
	return c.config.ModelVersion
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
}

func (c *embeddingClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one call; the returned vectors preserve
// input order.
func (c *embeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Model: c.config.ModelVersion})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	respBody, err := doWithRetries(ctx, c.httpClient, http.MethodPost,
		c.config.BaseURL+"/v1/embeddings", c.config.APIKey, body, c.config.MaxRetries)
	if err != nil {
		return nil, models.WrapError(models.KindExternal, "embedding service unavailable", err)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed response count mismatch: sent %d, got %d", len(texts), len(parsed.Embeddings))
	}
	for i, v := range parsed.Embeddings {
		if len(v) != c.config.Dim {
			return nil, fmt.Errorf("embedding %d has dim %d, expected %d", i, len(v), c.config.Dim)
		}
	}

	return parsed.Embeddings, nil
}

// doWithRetries posts a JSON body with bounded exponential backoff on 429 and
// 5xx responses. Shared by the embedding, vector store, LLM and OCR clients.
func doWithRetries(ctx context.Context, client *http.Client, method, url, apiKey string, body []byte, maxRetries int) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}
