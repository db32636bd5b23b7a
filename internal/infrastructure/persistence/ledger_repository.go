package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fifoOrder is the lot order shared by every ledger query.
const fifoOrder = "created_at ASC, id ASC"

// GormOperationRepository implements ledger.OperationRepository using GORM
type GormOperationRepository struct {
	db *gorm.DB
}

// NewGormOperationRepository creates a new GormOperationRepository
func NewGormOperationRepository(db *gorm.DB) *GormOperationRepository {
	return &GormOperationRepository{db: db}
}

// Create inserts operations in the given order
func (r *GormOperationRepository) Create(ctx context.Context, ops ...*ledger.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	rows := make([]*models.OperationModel, len(ops))
	for i, op := range ops {
		rows[i] = models.OperationModelFromDomain(op)
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *GormOperationRepository) byKey(ctx context.Context, key ledger.StockKey) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OperationModel{}).
		Where("product_id = ? AND warehouse_id = ? AND firm_id = ? AND visible = ?",
			key.ProductID, key.WarehouseID, key.FirmID, true)
}

// FindByKey returns every visible row of a key in FIFO order
func (r *GormOperationRepository) FindByKey(ctx context.Context, key ledger.StockKey) ([]ledger.Operation, error) {
	var rows []models.OperationModel
	if err := r.byKey(ctx, key).Order(fifoOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.OperationsToDomain(rows), nil
}

// LockLots locks the visible lots of a key FOR UPDATE, in FIFO order so that
// concurrent lockers acquire rows in the same sequence, then returns every
// visible row of the key. sqlite has no row locks and serializes writers
// instead; its dialect drops the locking clause.
func (r *GormOperationRepository) LockLots(ctx context.Context, key ledger.StockKey) ([]ledger.Operation, error) {
	var locked []uuid.UUID
	if err := r.byKey(ctx, key).
		Where("direction = ?", ledger.DirectionIn.String()).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order(fifoOrder).
		Pluck("id", &locked).Error; err != nil {
		return nil, err
	}
	return r.FindByKey(ctx, key)
}

// FindByID returns a single row regardless of visibility
func (r *GormOperationRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Operation, error) {
	var row models.OperationModel
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	op := row.ToDomain()
	return &op, nil
}

// FindByDocument returns every row owned by a document
func (r *GormOperationRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]ledger.Operation, error) {
	var rows []models.OperationModel
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.OperationsToDomain(rows), nil
}

// FindConsumers returns visible out rows drawn from any of lotIDs
func (r *GormOperationRepository) FindConsumers(ctx context.Context, lotIDs []uuid.UUID) ([]ledger.Operation, error) {
	if len(lotIDs) == 0 {
		return nil, nil
	}
	var rows []models.OperationModel
	if err := r.db.WithContext(ctx).
		Where("source_operation_id IN ? AND direction = ? AND visible = ?", lotIDs, ledger.DirectionOut.String(), true).
		Order(fifoOrder).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.OperationsToDomain(rows), nil
}

// DeleteByDocument hard-deletes every row owned by a document
func (r *GormOperationRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&models.OperationModel{})
	return res.RowsAffected, res.Error
}

// Hide clears the visible flag of a row
func (r *GormOperationRepository) Hide(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.OperationModel{}).
		Where("id = ?", id).
		Update("visible", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ ledger.OperationRepository = (*GormOperationRepository)(nil)
