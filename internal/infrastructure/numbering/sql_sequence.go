package numbering

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLSequence keeps one counter row per document type in document_sequences.
// The increment runs in its own transaction so the row lock is held only
// for the duration of the bump.
type SQLSequence struct {
	db     *gorm.DB
	format Format
}

// NewSQLSequence creates a database-backed sequence
func NewSQLSequence(db *gorm.DB, format Format) *SQLSequence {
	return &SQLSequence{db: db, format: format}
}

// Next returns the next number for docType
func (s *SQLSequence) Next(ctx context.Context, docType document.Type) (string, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.DocumentSequenceModel{DocType: docType.String()}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DocumentSequenceModel{}).
			Where("doc_type = ?", docType.String()).
			Update("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
			return err
		}
		var row models.DocumentSequenceModel
		if err := tx.Where("doc_type = ?", docType.String()).First(&row).Error; err != nil {
			return err
		}
		n = row.LastValue
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to advance %s sequence: %w", docType, err)
	}
	return s.format.Number(docType, n), nil
}
