package impl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/metrics"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

var pdfMagic = []byte("%PDF-")

type indexerServiceImpl struct {
	documents   services.DocumentService
	parser      services.Parser
	chunker     services.Chunker
	embedder    services.Embedder
	vectorStore services.VectorStore
	retriever   services.Retriever
	ocr         services.OCRClient
	ocrConfig   *config.OCRConfig
}

// NewIndexerService wires the upload path: dedupe, extract, parse, chunk,
// embed, upsert, register.
func NewIndexerService(
	documents services.DocumentService,
	parser services.Parser,
	chunker services.Chunker,
	embedder services.Embedder,
	vectorStore services.VectorStore,
	retriever services.Retriever,
	ocr services.OCRClient,
	ocrConfig *config.OCRConfig,
) services.IndexerService {
	return &indexerServiceImpl{
		documents:   documents,
		parser:      parser,
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		retriever:   retriever,
		ocr:         ocr,
		ocrConfig:   ocrConfig,
	}
}

func (s *indexerServiceImpl) Index(ctx context.Context, userID, filename string, raw []byte) (*models.IndexResponse, error) {
	if len(raw) == 0 {
		return nil, models.NewError(models.KindValidation, "uploaded file is empty")
	}

	sum := sha256.Sum256(raw)
	docHash := hex.EncodeToString(sum[:])

	if existing, err := s.documents.FindByHash(ctx, userID, docHash); err == nil {
		return nil, models.NewError(models.KindDuplicate,
			fmt.Sprintf("document already uploaded as %s", existing.ID))
	} else if models.KindOf(err) != models.KindNotFound {
		return nil, err
	}

	requestID := uuid.New().String()
	text, err := s.extractText(ctx, raw, requestID)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:        uuid.New(),
		UserID:    userID,
		Filename:  filename,
		DocHash:   docHash,
		SizeBytes: int64(len(raw)),
	}

	sections := s.parser.Parse(text)
	chunks := s.chunker.Chunk(sections, doc.ID.String())
	if len(chunks) == 0 {
		return nil, models.NewError(models.KindValidation, "document contains no indexable text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	points := make([]models.VectorPoint, len(chunks))
	for i, c := range chunks {
		points[i] = models.VectorPoint{
			NumericID: models.NumericVectorID(c.ChunkID),
			Chunk:     c,
			Vector:    vectors[i],
		}
	}
	if err := s.vectorStore.Upsert(ctx, points); err != nil {
		return nil, err
	}

	doc.ChunkCount = len(chunks)
	if err := s.documents.Create(ctx, doc); err != nil {
		// Roll the vectors back so a failed registration leaves no orphans.
		if delErr := s.vectorStore.DeleteByDocID(ctx, doc.ID.String()); delErr != nil {
			log.Printf("Warning: failed to roll back vectors for document %s: %v", doc.ID, delErr)
		}
		return nil, err
	}

	metrics.DocumentsIndexed.Inc()
	metrics.ChunksIngested.Add(float64(len(chunks)))
	log.Printf("Indexed document %s (%s): %d sections, %d chunks", doc.ID, filename, len(sections), len(chunks))

	return &models.IndexResponse{
		DocumentID:    doc.ID,
		Filename:      filename,
		ChunksCreated: len(chunks),
		Status:        "indexed",
	}, nil
}

// Delete soft-deletes the registry row, drops the document's vectors, and
// invalidates its cached queries.
func (s *indexerServiceImpl) Delete(ctx context.Context, userID string, docID uuid.UUID) error {
	doc, err := s.documents.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc.UserID != userID {
		return models.NewError(models.KindNotFound, "document not found")
	}

	if err := s.documents.SoftDelete(ctx, docID); err != nil {
		return err
	}
	if err := s.vectorStore.DeleteByDocID(ctx, docID.String()); err != nil {
		return err
	}
	if err := s.retriever.InvalidateDocument(ctx, docID.String()); err != nil {
		log.Printf("Warning: cache invalidation failed for document %s: %v", docID, err)
	}
	return nil
}

// extractText returns the plain text of an upload. Scanned PDFs go through
// the remote OCR service; anything else is treated as UTF-8 text.
func (s *indexerServiceImpl) extractText(ctx context.Context, raw []byte, requestID string) (string, error) {
	if !bytes.HasPrefix(raw, pdfMagic) {
		return string(raw), nil
	}
	if !s.ocr.IsAvailable(ctx) {
		return "", models.NewError(models.KindExternal, "ocr service unavailable")
	}
	result, err := s.ocr.Process(ctx, raw, s.ocrConfig.EnableHandwriting, requestID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Text) == "" {
		return "", models.NewError(models.KindValidation, "ocr produced no text")
	}
	return result.Text, nil
}
