package masterdata

import (
	"context"

	"github.com/google/uuid"
)

// CompanyRepository reads and stores companies
type CompanyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Company, error)
	Save(ctx context.Context, company *Company) error
}

// FirmRepository reads and stores firms
type FirmRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Firm, error)
	Save(ctx context.Context, firm *Firm) error
}

// ProductRepository reads and stores products and their units
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	Save(ctx context.Context, product *Product) error
	FindUnit(ctx context.Context, productID uuid.UUID, code string) (*ProductUnit, error)
	SaveUnit(ctx context.Context, unit *ProductUnit) error
}

// WarehouseRepository reads and stores warehouses
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	Save(ctx context.Context, warehouse *Warehouse) error
}

// PriceRepository reads price-list entries
type PriceRepository interface {
	FindPrice(ctx context.Context, productID, firmID uuid.UUID, kind PriceKind) (*ProductPrice, error)
	SavePrice(ctx context.Context, price *ProductPrice) error
}
