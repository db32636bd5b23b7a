// Package ledger models the operation ledger: the append-only set of stock
// movements from which every balance and cost is derived.
package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostPlaces is the precision ledger cost and sale prices are stored at.
const CostPlaces = 8

// Direction of a ledger row
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid returns true if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// StockKey scopes a balance. Rows of different keys never affect each other.
type StockKey struct {
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	FirmID      uuid.UUID
}

// NewStockKey builds a key
func NewStockKey(productID, warehouseID, firmID uuid.UUID) StockKey {
	return StockKey{ProductID: productID, WarehouseID: warehouseID, FirmID: firmID}
}

// Validate rejects keys with missing parts
func (k StockKey) Validate() error {
	if k.ProductID == uuid.Nil || k.WarehouseID == uuid.Nil || k.FirmID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "stock key requires product, warehouse and firm")
	}
	return nil
}

// String renders the key as product/warehouse/firm
func (k StockKey) String() string {
	return k.ProductID.String() + "/" + k.WarehouseID.String() + "/" + k.FirmID.String()
}

// Operation is one immutable ledger row. An `in` row is a lot; an `out` row
// may point at the lot it was drawn from through SourceOperationID.
type Operation struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	CompanyID         uuid.UUID
	FirmID            uuid.UUID
	ProductID         uuid.UUID
	WarehouseID       uuid.UUID
	Direction         Direction
	Quantity          decimal.Decimal
	CostPrice         decimal.Decimal
	SalePrice         *decimal.Decimal
	Visible           bool
	SourceOperationID *uuid.UUID
	CreatedAt         time.Time
}

// Owner identifies the document that writes a set of operations
type Owner struct {
	DocumentID uuid.UUID
	CompanyID  uuid.UUID
	FirmID     uuid.UUID
}

// Key returns the stock key the operation belongs to
func (o *Operation) Key() StockKey {
	return NewStockKey(o.ProductID, o.WarehouseID, o.FirmID)
}

// IsLot returns true for visible `in` rows
func (o *Operation) IsLot() bool {
	return o.Direction == DirectionIn && o.Visible
}

// Value returns quantity × cost price
func (o *Operation) Value() decimal.Decimal {
	return o.Quantity.Mul(o.CostPrice)
}

// SignedQuantity returns +quantity for `in` and −quantity for `out`
func (o *Operation) SignedQuantity() decimal.Decimal {
	if o.Direction == DirectionOut {
		return o.Quantity.Neg()
	}
	return o.Quantity
}

func newOperation(owner Owner, productID, warehouseID uuid.UUID, dir Direction, qty, cost decimal.Decimal, at time.Time) (*Operation, error) {
	if owner.DocumentID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "operation requires an owning document")
	}
	if err := NewStockKey(productID, warehouseID, owner.FirmID).Validate(); err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "operation quantity must be positive")
	}
	if cost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "cost price cannot be negative")
	}
	return &Operation{
		ID:          shared.NewID(),
		DocumentID:  owner.DocumentID,
		CompanyID:   owner.CompanyID,
		FirmID:      owner.FirmID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Direction:   dir,
		Quantity:    qty,
		CostPrice:   cost.Round(CostPlaces),
		Visible:     true,
		CreatedAt:   at.UTC(),
	}, nil
}

// NewInbound creates a lot
func NewInbound(owner Owner, productID, warehouseID uuid.UUID, qty, cost decimal.Decimal, at time.Time) (*Operation, error) {
	return newOperation(owner, productID, warehouseID, DirectionIn, qty, cost, at)
}

// NewOutbound creates an `out` row with no lot reference
func NewOutbound(owner Owner, productID, warehouseID uuid.UUID, qty, cost decimal.Decimal, at time.Time) (*Operation, error) {
	return newOperation(owner, productID, warehouseID, DirectionOut, qty, cost, at)
}

// NewConsumption creates an `out` row drawn from lot. The cost price is
// always copied from the lot.
func NewConsumption(owner Owner, lot *Operation, qty decimal.Decimal, salePrice *decimal.Decimal, at time.Time) (*Operation, error) {
	if lot == nil || !lot.IsLot() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "consumption must reference a visible lot")
	}
	if lot.FirmID != owner.FirmID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "consumption firm does not match lot firm")
	}
	if salePrice != nil && salePrice.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "sale price cannot be negative")
	}
	op, err := newOperation(owner, lot.ProductID, lot.WarehouseID, DirectionOut, qty, lot.CostPrice, at)
	if err != nil {
		return nil, err
	}
	lotID := lot.ID
	op.SourceOperationID = &lotID
	if salePrice != nil {
		sp := salePrice.Round(CostPlaces)
		op.SalePrice = &sp
	}
	return op, nil
}

// Balance returns Σ in − Σ out over the visible rows
func Balance(ops []Operation) decimal.Decimal {
	total := decimal.Zero
	for i := range ops {
		if !ops[i].Visible {
			continue
		}
		total = total.Add(ops[i].SignedQuantity())
	}
	return total
}
