// Package masterdata contains the reference entities documents point at:
// companies, their firms (legal entities), products, warehouses, units and prices.
package masterdata

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company groups firms and warehouses
type Company struct {
	shared.BaseEntity
	Name           string
	DefaultVATRate *decimal.Decimal
}

// NewCompany creates a company
func NewCompany(name string, defaultVATRate *decimal.Decimal) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "company name cannot be empty")
	}
	if defaultVATRate != nil && defaultVATRate.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "default VAT rate cannot be negative")
	}
	return &Company{
		BaseEntity:     shared.NewBaseEntity(),
		Name:           name,
		DefaultVATRate: defaultVATRate,
	}, nil
}

// Firm is a legal entity under a company. Its regime drives VAT on every
// document the firm owns.
type Firm struct {
	shared.BaseEntity
	CompanyID uuid.UUID
	Name      string
	Regime    tax.Regime
}

// NewFirm creates a firm
func NewFirm(companyID uuid.UUID, name string, regime tax.Regime) (*Firm, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "company ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "firm name cannot be empty")
	}
	if !regime.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown tax regime %q", regime)
	}
	return &Firm{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		Name:       name,
		Regime:     regime,
	}, nil
}

// Warehouse stores stock; balances are always scoped by (product, warehouse, firm)
type Warehouse struct {
	shared.BaseEntity
	CompanyID uuid.UUID
	Name      string
}

// NewWarehouse creates a warehouse
func NewWarehouse(companyID uuid.UUID, name string) (*Warehouse, error) {
	if companyID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "company ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "warehouse name cannot be empty")
	}
	return &Warehouse{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		Name:       name,
	}, nil
}
