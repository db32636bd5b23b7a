package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUnitConverter(t *testing.T) {
	db := setupTestDB(t)
	f := seedMasterdata(t, db)
	products := NewGormProductRepository(db)
	ctx := context.Background()

	bag, err := masterdata.NewProductUnit(f.product.ID, "bag", dec("25"))
	require.NoError(t, err)
	require.NoError(t, products.SaveUnit(ctx, bag))

	conv := NewProductUnitConverter(products)

	tests := []struct {
		name string
		unit string
		qty  string
		want string
	}{
		{"empty unit is base", "", "3", "3"},
		{"base unit ignores case", "KG", "1.5", "1.5"},
		{"alternate unit", "bag", "2", "50"},
		{"fractional alternate", "bag", "0.1", "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.ConvertToBase(ctx, f.product.ID, tt.unit, dec(tt.qty))
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}

	t.Run("unknown unit", func(t *testing.T) {
		_, err := conv.ConvertToBase(ctx, f.product.ID, "crate", dec("1"))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := conv.ConvertToBase(ctx, uuid.New(), "", dec("1"))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestCompanyVATRateProvider(t *testing.T) {
	db := setupTestDB(t)
	f := seedMasterdata(t, db)
	companies := NewGormCompanyRepository(db)
	ctx := context.Background()

	bare, err := masterdata.NewCompany("No Rate", nil)
	require.NoError(t, err)
	require.NoError(t, companies.Save(ctx, bare))

	p := NewCompanyVATRateProvider(companies, dec("18"))

	rate, err := p.DefaultVATRate(ctx, f.company.ID)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("20")))

	rate, err = p.DefaultVATRate(ctx, bare.ID)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("18")))

	rate, err = p.DefaultVATRate(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("18")))

	rate, err = NewCompanyVATRateProvider(companies, decimal.Zero).DefaultVATRate(ctx, bare.ID)
	require.NoError(t, err)
	assert.True(t, rate.Equal(dec("20")))
}

func TestPriceListLookup(t *testing.T) {
	db := setupTestDB(t)
	f := seedMasterdata(t, db)
	prices := NewGormPriceRepository(db)
	ctx := context.Background()

	require.NoError(t, prices.SavePrice(ctx, &masterdata.ProductPrice{
		ProductID: f.product.ID,
		FirmID:    f.firm.ID,
		Kind:      masterdata.PriceKindRetail,
		Price:     dec("4.99"),
	}))

	lookup := NewPriceListLookup(prices)
	price, err := lookup.GetPrice(ctx, f.product.ID, f.firm.ID, masterdata.PriceKindRetail)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("4.99")))

	_, err = lookup.GetPrice(ctx, f.product.ID, f.firm.ID, masterdata.PriceKindWholesale)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProductRepository_FindByIDs(t *testing.T) {
	db := setupTestDB(t)
	f := seedMasterdata(t, db)
	repo := NewGormProductRepository(db)

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{f.product.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Flour", found[f.product.ID].Name)
	assert.Equal(t, masterdata.ProductTypeStockItem, found[f.product.ID].Type)
}
