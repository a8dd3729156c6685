package handlers

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type RAGHandlers struct {
	analyzeService  services.AnalyzeService
	indexerService  services.IndexerService
	documentService services.DocumentService
	retriever       services.Retriever
	kv              services.KVStore
	maxUploadBytes  int64
	cacheEnabled    bool
}

func NewRAGHandlers(
	analyzeService services.AnalyzeService,
	indexerService services.IndexerService,
	documentService services.DocumentService,
	retriever services.Retriever,
	kv services.KVStore,
	serverConfig *config.ServerConfig,
	cacheConfig *config.CacheConfig,
) *RAGHandlers {
	return &RAGHandlers{
		analyzeService:  analyzeService,
		indexerService:  indexerService,
		documentService: documentService,
		retriever:       retriever,
		kv:              kv,
		maxUploadBytes:  int64(serverConfig.MaxUploadMB) << 20,
		cacheEnabled:    cacheConfig.Enabled,
	}
}

// Index handles document uploads: multipart form with a "file" field.
func (h *RAGHandlers) Index(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload", "details": err.Error()})
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "File too large",
			"limit": h.maxUploadBytes,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open upload", "details": err.Error()})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return
	}
	if int64(len(raw)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}

	resp, err := h.indexerService.Index(c.Request.Context(), userID, fileHeader.Filename, raw)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Analyze answers a query about one indexed document.
func (h *RAGHandlers) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.analyzeService.Analyze(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the PII-free audit trail of one document.
func (h *RAGHandlers) History(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if _, err := h.documentService.Get(c.Request.Context(), docID); err != nil {
		h.writeError(c, err)
		return
	}
	records, err := h.documentService.History(c.Request.Context(), docID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "history": records})
}

// DeleteDocument soft-deletes a document and drops its vectors and cache.
func (h *RAGHandlers) DeleteDocument(c *gin.Context) {
	userID := c.GetString("user_id")
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	if err := h.indexerService.Delete(c.Request.Context(), userID, docID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "status": "deleted"})
}

// Health reports liveness of the service and its stores. The endpoint always
// answers 200; a lost store degrades the status in the body.
func (h *RAGHandlers) Health(c *gin.Context) {
	status := "healthy"

	redisUp := h.kv.Ping(c.Request.Context()) == nil
	if !redisUp {
		status = "degraded"
	}

	dbStatus := "connected"
	if err := h.documentService.Ping(c.Request.Context()); err != nil {
		dbStatus = "disconnected"
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"redis":     redisUp,
		"database":  dbStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ClearCache deletes cached entries matching a pattern. Admin only.
func (h *RAGHandlers) ClearCache(c *gin.Context) {
	if !h.cacheEnabled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cache is disabled"})
		return
	}
	pattern := c.Query("pattern")
	if pattern == "" {
		pattern = "query:*"
	}

	keys, err := h.kv.Keys(c.Request.Context(), pattern)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan cache", "details": err.Error()})
		return
	}
	cleared := 0
	if len(keys) > 0 {
		cleared, err = h.kv.DeleteMany(c.Request.Context(), keys)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache", "details": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"clearedCount": cleared, "pattern": pattern})
}

// InvalidateDocumentCache drops all cached queries for one document. Admin
// only.
func (h *RAGHandlers) InvalidateDocumentCache(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}
	if err := h.retriever.InvalidateDocument(c.Request.Context(), docID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate cache", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": docID, "status": "invalidated"})
}

// writeError maps error kinds to HTTP statuses. Internal detail is logged,
// never returned.
func (h *RAGHandlers) writeError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindDuplicate:
		status = http.StatusConflict
	case models.KindQuota:
		status = http.StatusTooManyRequests
	case models.KindExternal:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": models.SafeMessage(err), "kind": string(kind)})
}
