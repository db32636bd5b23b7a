package document

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a document line. Quantity, Unit, UnitPrice and VATPercent are
// entered; the remaining amounts are derived when the document is posted.
type LineItem struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	LineNo     int
	ProductID  uuid.UUID
	Quantity   decimal.Decimal
	Unit       string
	UnitPrice  decimal.Decimal
	VATPercent *decimal.Decimal
	Role       Role

	ConvertedQuantity decimal.Decimal
	PriceWithoutVAT   decimal.Decimal
	VATAmount         decimal.Decimal
	PriceWithVAT      decimal.Decimal
	EffectiveVAT      decimal.Decimal
}

// LineInput carries the entered fields of a new line
type LineInput struct {
	ProductID  uuid.UUID
	Quantity   decimal.Decimal
	Unit       string
	UnitPrice  *decimal.Decimal
	VATPercent *decimal.Decimal
	Role       Role
}

// ApplyConversion stores the base-unit quantity
func (l *LineItem) ApplyConversion(base decimal.Decimal) error {
	if base.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "converted quantity cannot be negative")
	}
	l.ConvertedQuantity = base
	return nil
}

// ApplyVAT stores a VAT result on the line
func (l *LineItem) ApplyVAT(res tax.Result) {
	l.PriceWithoutVAT = res.PriceWithoutVAT
	l.VATAmount = res.VATAmount
	l.PriceWithVAT = res.PriceWithVAT
	l.EffectiveVAT = res.VATPercent
}

// AmountsConsistent reports whether net + VAT = gross
func (l *LineItem) AmountsConsistent() bool {
	return l.PriceWithoutVAT.Add(l.VATAmount).Equal(l.PriceWithVAT)
}

// UnitCost returns the net price per base unit.
func (l *LineItem) UnitCost() decimal.Decimal {
	base := l.ConvertedQuantity
	if base.IsZero() || base.Equal(l.Quantity) {
		return l.PriceWithoutVAT
	}
	return l.PriceWithoutVAT.Mul(l.Quantity).Div(base)
}
