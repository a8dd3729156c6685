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

type llmClient struct {
	config     *config.LLMConfig
	httpClient *http.Client
}

// NewLLMClient creates an HTTP client for the generative model endpoint.
// Callers are responsible for ensuring only anonymized text reaches it.
func NewLLMClient(cfg *config.LLMConfig) services.LLMClient {
	return &llmClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

type llmRequest struct {
	Query     string `json:"query"`
	Context   string `json:"context"`
	RequestID string `json:"request_id"`
}

func (c *llmClient) Analyze(ctx context.Context, anonQuery, anonContext, requestID string) (*models.LLMResult, error) {
	body, err := json.Marshal(llmRequest{
		Query:     anonQuery,
		Context:   anonContext,
		RequestID: requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal llm request: %w", err)
	}

	respBody, err := doWithRetries(ctx, c.httpClient, http.MethodPost,
		c.config.BaseURL+"/v1/analyze", c.config.APIKey, body, c.config.MaxRetries)
	if err != nil {
		return nil, models.WrapError(models.KindExternal, "generative model unavailable", err)
	}

	var result models.LLMResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse llm response: %w", err)
	}
	return &result, nil
}
