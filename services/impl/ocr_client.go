package impl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type ocrClient struct {
	config     *config.OCRConfig
	httpClient *http.Client
}

// NewOCRClient creates an HTTP client for the remote GPU OCR service.
func NewOCRClient(cfg *config.OCRConfig) services.OCRClient {
	return &ocrClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// IsAvailable probes the OCR service health endpoint with a short deadline.
func (c *ocrClient) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ocrRequest struct {
	Document          string `json:"document"` // base64-encoded PDF bytes
	EnableHandwriting bool   `json:"enable_handwriting"`
	RequestID         string `json:"request_id"`
}

func (c *ocrClient) Process(ctx context.Context, pdfBytes []byte, enableHandwriting bool, requestID string) (*models.OCRResult, error) {
	body, err := json.Marshal(ocrRequest{
		Document:          base64.StdEncoding.EncodeToString(pdfBytes),
		EnableHandwriting: enableHandwriting,
		RequestID:         requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	respBody, err := doWithRetries(ctx, c.httpClient, http.MethodPost,
		c.config.BaseURL+"/v1/process", c.config.APIKey, body, 1)
	if err != nil {
		return nil, models.WrapError(models.KindExternal, "ocr service unavailable", err)
	}

	var result models.OCRResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ocr response: %w", err)
	}
	return &result, nil
}
