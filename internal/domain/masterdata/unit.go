package masterdata

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityPlaces is the precision base quantities are rounded to after conversion.
const QuantityPlaces = 4

// ProductUnit is an alternate unit of a product: 1 Code = Rate base units.
type ProductUnit struct {
	ProductID uuid.UUID
	Code      string
	Rate      decimal.Decimal
}

// NewProductUnit creates an alternate unit
func NewProductUnit(productID uuid.UUID, code string, rate decimal.Decimal) (*ProductUnit, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "unit code cannot be empty")
	}
	if !rate.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "conversion rate must be positive")
	}
	return &ProductUnit{ProductID: productID, Code: code, Rate: rate}, nil
}

// ToBase converts quantity in this unit into base units
func (u ProductUnit) ToBase(quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidInput, "quantity cannot be negative")
	}
	return quantity.Mul(u.Rate).Round(QuantityPlaces), nil
}

// PriceKind selects a price list column
type PriceKind string

const (
	PriceKindRetail    PriceKind = "retail"
	PriceKindWholesale PriceKind = "wholesale"
	PriceKindPurchase  PriceKind = "purchase"
)

// ProductPrice is a price-list entry for a product sold by a firm
type ProductPrice struct {
	ProductID uuid.UUID
	FirmID    uuid.UUID
	Kind      PriceKind
	Price     decimal.Decimal
}
