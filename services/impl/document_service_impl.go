package impl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

const uniqueViolationCode = "23505"

type documentServiceImpl struct {
	db *gorm.DB
}

// NewDocumentService creates the registry of uploaded documents backed by
// Postgres.
func NewDocumentService(db *gorm.DB) services.DocumentService {
	return &documentServiceImpl{db: db}
}

func (s *documentServiceImpl) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusActive
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindDuplicate, "document already uploaded", err)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *documentServiceImpl) Get(ctx context.Context, docID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", docID, models.DocumentStatusActive).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewError(models.KindNotFound, "document not found")
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

func (s *documentServiceImpl) FindByHash(ctx context.Context, userID, docHash string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND doc_hash = ? AND status = ?", userID, docHash, models.DocumentStatusActive).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewError(models.KindNotFound, "document not found")
		}
		return nil, fmt.Errorf("failed to look up document by hash: %w", err)
	}
	return &doc, nil
}

// SoftDelete flips the status flag; the row and its audit history stay.
func (s *documentServiceImpl) SoftDelete(ctx context.Context, docID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND status = ?", docID, models.DocumentStatusActive).
		Update("status", models.DocumentStatusDeleted)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewError(models.KindNotFound, "document not found")
	}
	return nil
}

func (s *documentServiceImpl) RecordAudit(ctx context.Context, rec *models.AuditRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (s *documentServiceImpl) History(ctx context.Context, docID uuid.UUID, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.AuditRecord
	err := s.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return records, nil
}

func (s *documentServiceImpl) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
