package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// GormCompanyRepository implements masterdata.CompanyRepository using GORM
type GormCompanyRepository struct {
	db *gorm.DB
}

// NewGormCompanyRepository creates a new GormCompanyRepository
func NewGormCompanyRepository(db *gorm.DB) *GormCompanyRepository {
	return &GormCompanyRepository{db: db}
}

// FindByID finds a company by its ID
func (r *GormCompanyRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Company, error) {
	var m models.CompanyModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Save creates or updates a company
func (r *GormCompanyRepository) Save(ctx context.Context, company *masterdata.Company) error {
	return r.db.WithContext(ctx).Save(models.CompanyModelFromDomain(company)).Error
}

// GormFirmRepository implements masterdata.FirmRepository using GORM
type GormFirmRepository struct {
	db *gorm.DB
}

// NewGormFirmRepository creates a new GormFirmRepository
func NewGormFirmRepository(db *gorm.DB) *GormFirmRepository {
	return &GormFirmRepository{db: db}
}

// FindByID finds a firm by its ID
func (r *GormFirmRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Firm, error) {
	var m models.FirmModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Save creates or updates a firm
func (r *GormFirmRepository) Save(ctx context.Context, firm *masterdata.Firm) error {
	return r.db.WithContext(ctx).Save(models.FirmModelFromDomain(firm)).Error
}

// GormWarehouseRepository implements masterdata.WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by its ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Warehouse, error) {
	var m models.WarehouseModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// Save creates or updates a warehouse
func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *masterdata.Warehouse) error {
	return r.db.WithContext(ctx).Save(models.WarehouseModelFromDomain(warehouse)).Error
}

// GormProductRepository implements masterdata.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*masterdata.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// FindByIDs loads several products at once. Missing ids are simply absent
// from the result.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*masterdata.Product, error) {
	out := make(map[uuid.UUID]*masterdata.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *masterdata.Product) error {
	return r.db.WithContext(ctx).Save(models.ProductModelFromDomain(product)).Error
}

// FindUnit finds an alternate unit of a product
func (r *GormProductRepository) FindUnit(ctx context.Context, productID uuid.UUID, code string) (*masterdata.ProductUnit, error) {
	var m models.ProductUnitModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND code = ?", productID, code).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// SaveUnit creates or updates an alternate unit
func (r *GormProductRepository) SaveUnit(ctx context.Context, unit *masterdata.ProductUnit) error {
	return r.db.WithContext(ctx).Save(&models.ProductUnitModel{
		ProductID: unit.ProductID,
		Code:      unit.Code,
		Rate:      unit.Rate,
	}).Error
}

// GormPriceRepository implements masterdata.PriceRepository using GORM
type GormPriceRepository struct {
	db *gorm.DB
}

// NewGormPriceRepository creates a new GormPriceRepository
func NewGormPriceRepository(db *gorm.DB) *GormPriceRepository {
	return &GormPriceRepository{db: db}
}

// FindPrice finds the list price of a product for a firm
func (r *GormPriceRepository) FindPrice(ctx context.Context, productID, firmID uuid.UUID, kind masterdata.PriceKind) (*masterdata.ProductPrice, error) {
	var m models.ProductPriceModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND firm_id = ? AND kind = ?", productID, firmID, string(kind)).
		First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToDomain(), nil
}

// SavePrice creates or updates a price-list entry
func (r *GormPriceRepository) SavePrice(ctx context.Context, price *masterdata.ProductPrice) error {
	return r.db.WithContext(ctx).Save(&models.ProductPriceModel{
		ProductID: price.ProductID,
		FirmID:    price.FirmID,
		Kind:      string(price.Kind),
		Price:     price.Price,
	}).Error
}

var (
	_ masterdata.CompanyRepository   = (*GormCompanyRepository)(nil)
	_ masterdata.FirmRepository      = (*GormFirmRepository)(nil)
	_ masterdata.WarehouseRepository = (*GormWarehouseRepository)(nil)
	_ masterdata.ProductRepository   = (*GormProductRepository)(nil)
	_ masterdata.PriceRepository     = (*GormPriceRepository)(nil)
)
