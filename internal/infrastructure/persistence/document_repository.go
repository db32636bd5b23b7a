package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements document.Repository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

func (r *GormDocumentRepository) find(query *gorm.DB, id uuid.UUID) (*document.Document, error) {
	var m models.DocumentModel
	if err := query.Preload("Lines", preloadLines).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByID finds a document with its lines
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a document and locks its header row until the
// surrounding transaction ends
func (r *GormDocumentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// FindAll lists documents matching filter, newest first by default
func (r *GormDocumentRepository) FindAll(ctx context.Context, filter document.Filter) ([]document.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{})
	if filter.CompanyID != nil {
		query = query.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.FirmID != nil {
		query = query.Where("firm_id = ?", *filter.FirmID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", filter.Type.String())
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if source, ok := filter.Filters["source_document_id"].(uuid.UUID); ok {
		query = query.Where("source_document_id = ?", source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, DocumentSortFields, "created_at")
	var rows []models.DocumentModel
	if err := query.
		Preload("Lines", preloadLines).
		Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).
		Order("id ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	docs := make([]document.Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs, total, nil
}

// FindPostedBySource returns posted documents of docType that reference sourceID
func (r *GormDocumentRepository) FindPostedBySource(ctx context.Context, sourceID uuid.UUID, docType document.Type) ([]document.Document, error) {
	var rows []models.DocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		Where("source_document_id = ? AND type = ? AND status = ?",
			sourceID, docType.String(), document.StatusPosted.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]document.Document, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs, nil
}

// Save upserts the header and replaces the lines
func (r *GormDocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	m := models.DocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentLineModel{}).Error; err != nil {
			return err
		}
		if len(m.Lines) > 0 {
			if err := tx.Create(&m.Lines).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus writes the status flip and derived line amounts. The header
// update only applies when the stored version is the one the document was
// loaded with.
func (r *GormDocumentRepository) UpdateStatus(ctx context.Context, doc *document.Document) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DocumentModel{}).
			Where("id = ? AND version = ?", doc.ID, doc.Version-1).
			Updates(map[string]any{
				"status":     doc.Status.String(),
				"posted_at":  doc.PostedAt,
				"updated_at": doc.UpdatedAt,
				"version":    doc.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.NewDomainErrorf(shared.CodeConcurrencyConflict,
				"document %s was modified concurrently", doc.Number).
				WithDetail("document_id", doc.ID.String())
		}

		for i := range doc.Lines {
			line := &doc.Lines[i]
			if err := tx.Model(&models.DocumentLineModel{}).
				Where("id = ?", line.ID).
				Updates(map[string]any{
					"converted_quantity": line.ConvertedQuantity,
					"price_without_vat":  line.PriceWithoutVAT,
					"vat_amount":         line.VATAmount,
					"price_with_vat":     line.PriceWithVAT,
					"effective_vat":      line.EffectiveVAT,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a draft document and its lines. The header is locked and
// re-checked inside the transaction, and the delete itself only matches a
// draft row, so a document posted in the meantime is left alone.
func (r *GormDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.DocumentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if err := m.ToDomain().EnsureDeletable(); err != nil {
			return err
		}

		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentLineModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("status = ?", document.StatusDraft.String()).
			Delete(&models.DocumentModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted,
				"document %s was posted before it could be deleted", m.Number).
				WithDetail("document_id", id.String())
		}
		return nil
	})
}

var _ document.Repository = (*GormDocumentRepository)(nil)
