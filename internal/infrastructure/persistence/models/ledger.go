package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationModel is one ledger row. The (product, warehouse, firm) index
// serves every balance query and the lot lock.
type OperationModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	DocumentID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	CompanyID         uuid.UUID        `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_key,priority:1"`
	WarehouseID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_key,priority:2"`
	FirmID            uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_key,priority:3"`
	Direction         string           `gorm:"type:varchar(3);not null"`
	Quantity          decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	CostPrice         decimal.Decimal  `gorm:"type:numeric(24,8);not null"`
	SalePrice         *decimal.Decimal `gorm:"type:numeric(24,8)"`
	Visible           bool             `gorm:"not null"`
	SourceOperationID *uuid.UUID       `gorm:"type:uuid;index"`
	CreatedAt         time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (OperationModel) TableName() string {
	return "ledger_operations"
}

// ToDomain converts the persistence model to a domain Operation
func (m *OperationModel) ToDomain() ledger.Operation {
	return ledger.Operation{
		ID:                m.ID,
		DocumentID:        m.DocumentID,
		CompanyID:         m.CompanyID,
		FirmID:            m.FirmID,
		ProductID:         m.ProductID,
		WarehouseID:       m.WarehouseID,
		Direction:         ledger.Direction(m.Direction),
		Quantity:          m.Quantity,
		CostPrice:         m.CostPrice,
		SalePrice:         m.SalePrice,
		Visible:           m.Visible,
		SourceOperationID: m.SourceOperationID,
		CreatedAt:         m.CreatedAt.UTC(),
	}
}

// OperationModelFromDomain creates a persistence model from a domain Operation
func OperationModelFromDomain(op *ledger.Operation) *OperationModel {
	return &OperationModel{
		ID:                op.ID,
		DocumentID:        op.DocumentID,
		CompanyID:         op.CompanyID,
		FirmID:            op.FirmID,
		ProductID:         op.ProductID,
		WarehouseID:       op.WarehouseID,
		Direction:         op.Direction.String(),
		Quantity:          op.Quantity,
		CostPrice:         op.CostPrice,
		SalePrice:         op.SalePrice,
		Visible:           op.Visible,
		SourceOperationID: op.SourceOperationID,
		CreatedAt:         op.CreatedAt,
	}
}

// OperationsToDomain converts a slice of models
func OperationsToDomain(rows []OperationModel) []ledger.Operation {
	out := make([]ledger.Operation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}
