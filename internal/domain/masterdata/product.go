package masterdata

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType classifies what a product is
type ProductType string

const (
	ProductTypeStockItem    ProductType = "stock_item"
	ProductTypeSemiFinished ProductType = "semi_finished"
	ProductTypeService      ProductType = "service"
)

// IsValid returns true if the product type is known
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypeStockItem, ProductTypeSemiFinished, ProductTypeService:
		return true
	}
	return false
}

// IsStocked returns true if the product moves through the ledger
func (t ProductType) IsStocked() bool {
	return t == ProductTypeStockItem || t == ProductTypeSemiFinished
}

// Product is a stock-keeping item owned by a firm
type Product struct {
	shared.BaseEntity
	FirmID   uuid.UUID
	Name     string
	BaseUnit string
	VATRate  *decimal.Decimal
	Type     ProductType
}

// NewProduct creates a product
func NewProduct(firmID uuid.UUID, name, baseUnit string, productType ProductType) (*Product, error) {
	if firmID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "firm ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "product name cannot be empty")
	}
	baseUnit = strings.TrimSpace(baseUnit)
	if baseUnit == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "base unit cannot be empty")
	}
	if !productType.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown product type %q", productType)
	}
	return &Product{
		BaseEntity: shared.NewBaseEntity(),
		FirmID:     firmID,
		Name:       name,
		BaseUnit:   baseUnit,
		Type:       productType,
	}, nil
}

// SetVATRate sets the product's VAT rate hint
func (p *Product) SetVATRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "VAT rate cannot be negative")
	}
	p.VATRate = &rate
	return nil
}
