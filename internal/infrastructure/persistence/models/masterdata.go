package models

import (
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompanyModel is the persistence model for companies
type CompanyModel struct {
	BaseModel
	Name           string           `gorm:"type:varchar(200);not null"`
	DefaultVATRate *decimal.Decimal `gorm:"type:numeric(7,4)"`
}

// TableName returns the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ToDomain converts the persistence model to a domain Company
func (m *CompanyModel) ToDomain() *masterdata.Company {
	return &masterdata.Company{
		BaseEntity:     m.BaseModel.ToDomain(),
		Name:           m.Name,
		DefaultVATRate: m.DefaultVATRate,
	}
}

// CompanyModelFromDomain creates a persistence model from a domain Company
func CompanyModelFromDomain(c *masterdata.Company) *CompanyModel {
	m := &CompanyModel{Name: c.Name, DefaultVATRate: c.DefaultVATRate}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// FirmModel is the persistence model for firms
type FirmModel struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Regime    string    `gorm:"type:varchar(16);not null"`
}

// TableName returns the table name for GORM
func (FirmModel) TableName() string {
	return "firms"
}

// ToDomain converts the persistence model to a domain Firm
func (m *FirmModel) ToDomain() *masterdata.Firm {
	return &masterdata.Firm{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
		Name:       m.Name,
		Regime:     tax.Regime(m.Regime),
	}
}

// FirmModelFromDomain creates a persistence model from a domain Firm
func FirmModelFromDomain(f *masterdata.Firm) *FirmModel {
	m := &FirmModel{CompanyID: f.CompanyID, Name: f.Name, Regime: string(f.Regime)}
	m.FromDomainBaseEntity(f.BaseEntity)
	return m
}

// WarehouseModel is the persistence model for warehouses
type WarehouseModel struct {
	BaseModel
	CompanyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// ToDomain converts the persistence model to a domain Warehouse
func (m *WarehouseModel) ToDomain() *masterdata.Warehouse {
	return &masterdata.Warehouse{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
		Name:       m.Name,
	}
}

// WarehouseModelFromDomain creates a persistence model from a domain Warehouse
func WarehouseModelFromDomain(w *masterdata.Warehouse) *WarehouseModel {
	m := &WarehouseModel{CompanyID: w.CompanyID, Name: w.Name}
	m.FromDomainBaseEntity(w.BaseEntity)
	return m
}

// ProductModel is the persistence model for products
type ProductModel struct {
	BaseModel
	FirmID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name     string           `gorm:"type:varchar(200);not null"`
	BaseUnit string           `gorm:"type:varchar(32);not null"`
	VATRate  *decimal.Decimal `gorm:"type:numeric(7,4)"`
	Type     string           `gorm:"type:varchar(32);not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *masterdata.Product {
	return &masterdata.Product{
		BaseEntity: m.BaseModel.ToDomain(),
		FirmID:     m.FirmID,
		Name:       m.Name,
		BaseUnit:   m.BaseUnit,
		VATRate:    m.VATRate,
		Type:       masterdata.ProductType(m.Type),
	}
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *masterdata.Product) *ProductModel {
	m := &ProductModel{
		FirmID:   p.FirmID,
		Name:     p.Name,
		BaseUnit: p.BaseUnit,
		VATRate:  p.VATRate,
		Type:     string(p.Type),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// ProductUnitModel is an alternate unit of a product
type ProductUnitModel struct {
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Code      string          `gorm:"type:varchar(32);primaryKey"`
	Rate      decimal.Decimal `gorm:"type:numeric(20,6);not null"`
}

// TableName returns the table name for GORM
func (ProductUnitModel) TableName() string {
	return "product_units"
}

// ToDomain converts the persistence model to a domain ProductUnit
func (m *ProductUnitModel) ToDomain() *masterdata.ProductUnit {
	return &masterdata.ProductUnit{ProductID: m.ProductID, Code: m.Code, Rate: m.Rate}
}

// ProductPriceModel is a price-list entry
type ProductPriceModel struct {
	ProductID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	FirmID    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Kind      string          `gorm:"type:varchar(16);primaryKey"`
	Price     decimal.Decimal `gorm:"type:numeric(24,8);not null"`
}

// TableName returns the table name for GORM
func (ProductPriceModel) TableName() string {
	return "product_prices"
}

// ToDomain converts the persistence model to a domain ProductPrice
func (m *ProductPriceModel) ToDomain() *masterdata.ProductPrice {
	return &masterdata.ProductPrice{
		ProductID: m.ProductID,
		FirmID:    m.FirmID,
		Kind:      masterdata.PriceKind(m.Kind),
		Price:     m.Price,
	}
}
