package impl

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/metrics"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
	"github.com/lexrag-backend/services/verifier"
)

type analyzeServiceImpl struct {
	documents  services.DocumentService
	retriever  services.Retriever
	anonymizer services.Anonymizer
	llm        services.LLMClient
	verifier   *verifier.Verifier
	embedding  *config.EmbeddingConfig
	retrieval  *config.RetrievalConfig
}

// NewAnalyzeService wires the analyze pipeline: retrieve, anonymize, generate,
// restore, verify, audit. Steps are strictly sequential per request.
func NewAnalyzeService(
	documents services.DocumentService,
	retriever services.Retriever,
	anonymizer services.Anonymizer,
	llm services.LLMClient,
	vrf *verifier.Verifier,
	embedding *config.EmbeddingConfig,
	retrieval *config.RetrievalConfig,
) services.AnalyzeService {
	return &analyzeServiceImpl{
		documents:  documents,
		retriever:  retriever,
		anonymizer: anonymizer,
		llm:        llm,
		verifier:   vrf,
		embedding:  embedding,
		retrieval:  retrieval,
	}
}

func (s *analyzeServiceImpl) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	started := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, models.NewError(models.KindValidation, "query must not be empty")
	}
	if req.FileID == uuid.Nil {
		return nil, models.NewError(models.KindValidation, "fileId is required")
	}

	doc, err := s.documents.Get(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	docID := doc.ID.String()

	results, err := s.retriever.Retrieve(ctx, req.Query, docID, req.TopK, s.retrieval.DefaultThreshold)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// Nothing grounded to generate from; never send an ungrounded query
		// to the model.
		resp := s.emptyResponse(requestID, started)
		s.audit(ctx, doc.ID, requestID, req.Query, "", resp, models.TrustRejected, started)
		return resp, nil
	}

	anonQuery, _, err := s.anonymizer.Anonymize(ctx, req.Query, requestID)
	if err != nil {
		return nil, err
	}
	// The second call merges into the same mapping, so it carries the
	// entities from both query and context.
	anonContext, mapping, err := s.anonymizer.Anonymize(ctx, s.retriever.FormatContext(results), requestID)
	if err != nil {
		return nil, err
	}

	// Hard gate: nothing crosses the model boundary while detectable PII
	// remains.
	if !s.anonymizer.VerifyNoLeakage(anonQuery) || !s.anonymizer.VerifyNoLeakage(anonContext) {
		metrics.PIILeakageAborts.Inc()
		return nil, models.NewError(models.KindPIILeakage, "anonymization incomplete, request aborted")
	}
	countAnonymizedEntities(mapping)

	llmResult, err := s.llm.Analyze(ctx, anonQuery, anonContext, requestID)
	if err != nil {
		return nil, err
	}

	answer, err := s.anonymizer.Deanonymize(ctx, llmResult.Answer, requestID)
	if err != nil {
		return nil, err
	}

	verification, err := s.verifier.Verify(ctx, answer, results, s.refetch(docID, req))
	if err != nil {
		return nil, err
	}
	metrics.TrustLabels.WithLabelValues(string(verification.TrustLabel)).Inc()

	resp := &models.AnalyzeResponse{
		Answer:            answer,
		Citations:         verification.Citations,
		Confidence:        verification.Confidence,
		RequestID:         requestID,
		UnsupportedClaims: verification.UnsupportedClaims,
		Metadata: models.AnalyzeMetadata{
			LatencyMs:             time.Since(started).Milliseconds(),
			TokensUsed:            llmResult.TokensUsed,
			ChunksRetrieved:       len(results),
			ModelVersion:          llmResult.ModelVersion,
			PIIEntitiesAnonymized: len(mapping),
		},
	}
	s.audit(ctx, doc.ID, requestID, req.Query, answer, resp, verification.TrustLabel, started)
	return resp, nil
}

// refetch widens the search for the verifier's auto-retry loop.
func (s *analyzeServiceImpl) refetch(docID string, req models.AnalyzeRequest) verifier.RefetchFunc {
	return func(ctx context.Context, answer string, confidence float64) ([]models.RetrievalResult, error) {
		topK := req.TopK
		if topK <= 0 {
			topK = s.retrieval.DefaultTopK
		}
		topK *= 2
		if topK > s.retrieval.MaxTopK {
			topK = s.retrieval.MaxTopK
		}
		return s.retriever.Retrieve(ctx, req.Query, docID, topK, s.retrieval.DefaultThreshold)
	}
}

func (s *analyzeServiceImpl) emptyResponse(requestID string, started time.Time) *models.AnalyzeResponse {
	metrics.TrustLabels.WithLabelValues(string(models.TrustRejected)).Inc()
	return &models.AnalyzeResponse{
		Answer:            "",
		Citations:         []string{},
		Confidence:        0,
		RequestID:         requestID,
		UnsupportedClaims: []string{},
		Metadata: models.AnalyzeMetadata{
			LatencyMs:    time.Since(started).Milliseconds(),
			ModelVersion: s.embedding.ModelVersion,
		},
	}
}

// audit stores the PII-free history row. Audit failures are logged, never
// surfaced.
func (s *analyzeServiceImpl) audit(ctx context.Context, docID uuid.UUID, requestID, query, answer string, resp *models.AnalyzeResponse, label models.TrustLabel, started time.Time) {
	citations, err := json.Marshal(resp.Citations)
	if err != nil {
		citations = []byte("[]")
	}
	rec := &models.AuditRecord{
		DocumentID: docID,
		RequestID:  requestID,
		QueryHash:  verifier.HashText(query),
		AnswerHash: verifier.HashText(answer),
		Confidence: resp.Confidence,
		TrustLabel: label,
		Citations:  datatypes.JSON(citations),
		TokensUsed: resp.Metadata.TokensUsed,
		LatencyMs:  time.Since(started).Milliseconds(),
	}
	if err := s.documents.RecordAudit(ctx, rec); err != nil {
		log.Printf("Warning: failed to record audit entry for request %s: %v", requestID, err)
	}
}

func countAnonymizedEntities(mapping map[string]string) {
	for placeholder := range mapping {
		kind, _ := parsePlaceholder(placeholder)
		metrics.PIIEntitiesAnonymized.WithLabelValues(kind).Inc()
	}
}
