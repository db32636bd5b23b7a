package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductUnitConverter converts entered quantities to base units through the
// product_units table. The base unit (or an empty unit) converts at rate 1.
type ProductUnitConverter struct {
	products masterdata.ProductRepository
}

// NewProductUnitConverter creates a ProductUnitConverter
func NewProductUnitConverter(products masterdata.ProductRepository) *ProductUnitConverter {
	return &ProductUnitConverter{products: products}
}

// ConvertToBase returns quantity expressed in the product's base unit
func (c *ProductUnitConverter) ConvertToBase(ctx context.Context, productID uuid.UUID, unit string, quantity decimal.Decimal) (decimal.Decimal, error) {
	product, err := c.products.FindByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load product %s: %w", productID, err)
	}
	unit = strings.TrimSpace(unit)
	if unit == "" || strings.EqualFold(unit, product.BaseUnit) {
		base := masterdata.ProductUnit{ProductID: productID, Code: product.BaseUnit, Rate: decimal.NewFromInt(1)}
		return base.ToBase(quantity)
	}
	pu, err := c.products.FindUnit(ctx, productID, unit)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return decimal.Zero, shared.NewDomainErrorf(shared.CodeInvalidInput,
				"product %s has no unit %q", product.Name, unit).
				WithDetail("product_id", productID.String())
		}
		return decimal.Zero, err
	}
	return pu.ToBase(quantity)
}

// CompanyVATRateProvider reads the default VAT percent of a company. A
// company without its own rate gets the configured fallback.
type CompanyVATRateProvider struct {
	companies masterdata.CompanyRepository
	fallback  decimal.Decimal
}

// NewCompanyVATRateProvider creates a provider. A zero fallback means tax.FallbackRate.
func NewCompanyVATRateProvider(companies masterdata.CompanyRepository, fallback decimal.Decimal) *CompanyVATRateProvider {
	if fallback.IsZero() {
		fallback = tax.FallbackRate
	}
	return &CompanyVATRateProvider{companies: companies, fallback: fallback}
}

// DefaultVATRate returns the company's default VAT percent
func (p *CompanyVATRateProvider) DefaultVATRate(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error) {
	company, err := p.companies.FindByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return p.fallback, nil
		}
		return decimal.Zero, err
	}
	if company.DefaultVATRate == nil {
		return p.fallback, nil
	}
	return *company.DefaultVATRate, nil
}

// PriceListLookup resolves list prices from product_prices
type PriceListLookup struct {
	prices masterdata.PriceRepository
}

// NewPriceListLookup creates a PriceListLookup
func NewPriceListLookup(prices masterdata.PriceRepository) *PriceListLookup {
	return &PriceListLookup{prices: prices}
}

// GetPrice returns the list price, or shared.ErrNotFound when none is set
func (l *PriceListLookup) GetPrice(ctx context.Context, productID, firmID uuid.UUID, kind masterdata.PriceKind) (decimal.Decimal, error) {
	price, err := l.prices.FindPrice(ctx, productID, firmID, kind)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Price, nil
}

var (
	_ posting.UnitConverter   = (*ProductUnitConverter)(nil)
	_ posting.VATRateProvider = (*CompanyVATRateProvider)(nil)
	_ posting.PriceLookup     = (*PriceListLookup)(nil)
)
