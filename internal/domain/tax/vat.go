// Package tax holds the VAT rule applied to every priced document line.
//
// The firm's tax regime is always passed explicitly and is consulted before
// any rate: an untaxed firm never charges VAT, whatever the line says.
package tax

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Regime is the VAT status of a legal entity
type Regime string

const (
	RegimeUntaxed Regime = "untaxed"
	RegimeTaxed   Regime = "taxed"
)

// IsValid reports whether the regime is a known value
func (r Regime) IsValid() bool {
	return r == RegimeUntaxed || r == RegimeTaxed
}

// Mode tells ApplyVAT whether the supplied price already contains VAT
type Mode string

const (
	ModeFromGross Mode = "from_gross"
	ModeFromNet   Mode = "from_net"
)

// IsValid reports whether the mode is a known value
func (m Mode) IsValid() bool {
	return m == ModeFromGross || m == ModeFromNet
}

// MoneyPlaces is the number of decimal places money amounts are rounded to.
const MoneyPlaces = 2

var (
	// FallbackRate is used when neither the line nor the company configures a rate.
	FallbackRate = decimal.NewFromInt(20)

	hundred = decimal.NewFromInt(100)
)

// Result is the outcome of applying VAT to a single price
type Result struct {
	PriceWithoutVAT decimal.Decimal
	VATAmount       decimal.Decimal
	PriceWithVAT    decimal.Decimal
	VATPercent      decimal.Decimal
}

// Consistent reports whether net + vat equals gross exactly.
func (r Result) Consistent() bool {
	return r.PriceWithoutVAT.Add(r.VATAmount).Equal(r.PriceWithVAT)
}

// RoundMoney rounds half away from zero to MoneyPlaces, which is half-up for
// the non-negative amounts documents carry.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// DefaultRate returns the configured company rate, or FallbackRate when none is set.
func DefaultRate(configured *decimal.Decimal) decimal.Decimal {
	if configured == nil || configured.IsNegative() {
		return FallbackRate
	}
	return *configured
}

// ApplyVAT splits or extends price according to regime, rate and mode.
// lineRate overrides defaultRate when set; the regime overrides both.
func ApplyVAT(regime Regime, price decimal.Decimal, lineRate *decimal.Decimal, defaultRate decimal.Decimal, mode Mode) (Result, error) {
	if !regime.IsValid() {
		return Result{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown tax regime %q", regime)
	}
	if !mode.IsValid() {
		return Result{}, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown VAT mode %q", mode)
	}
	if price.IsNegative() {
		return Result{}, shared.NewDomainError(shared.CodeInvalidInput, "price cannot be negative")
	}

	if regime == RegimeUntaxed {
		return Result{
			PriceWithoutVAT: price,
			VATAmount:       decimal.Zero,
			PriceWithVAT:    price,
			VATPercent:      decimal.Zero,
		}, nil
	}

	rate := defaultRate
	if lineRate != nil {
		rate = *lineRate
	}
	if rate.IsNegative() {
		return Result{}, shared.NewDomainError(shared.CodeInvalidInput, "VAT rate cannot be negative")
	}

	if mode == ModeFromGross {
		vat := RoundMoney(price.Mul(rate).Div(hundred.Add(rate)))
		return Result{
			PriceWithoutVAT: price.Sub(vat),
			VATAmount:       vat,
			PriceWithVAT:    price,
			VATPercent:      rate,
		}, nil
	}

	vat := RoundMoney(price.Mul(rate).Div(hundred))
	return Result{
		PriceWithoutVAT: price,
		VATAmount:       vat,
		PriceWithVAT:    price.Add(vat),
		VATPercent:      rate,
	}, nil
}
