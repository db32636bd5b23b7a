package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d.DB
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	company   *masterdata.Company
	firm      *masterdata.Firm
	warehouse *masterdata.Warehouse
	product   *masterdata.Product
}

func seedMasterdata(t *testing.T, db *gorm.DB) fixture {
	t.Helper()
	ctx := context.Background()

	rate := dec("20")
	company, err := masterdata.NewCompany("Acme", &rate)
	require.NoError(t, err)
	require.NoError(t, NewGormCompanyRepository(db).Save(ctx, company))

	firm, err := masterdata.NewFirm(company.ID, "Acme Trading", tax.RegimeTaxed)
	require.NoError(t, err)
	require.NoError(t, NewGormFirmRepository(db).Save(ctx, firm))

	warehouse, err := masterdata.NewWarehouse(company.ID, "Main")
	require.NoError(t, err)
	require.NoError(t, NewGormWarehouseRepository(db).Save(ctx, warehouse))

	product, err := masterdata.NewProduct(firm.ID, "Flour", "kg", masterdata.ProductTypeStockItem)
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Save(ctx, product))

	return fixture{company: company, firm: firm, warehouse: warehouse, product: product}
}

func (f fixture) owner(documentID uuid.UUID) ledger.Owner {
	return ledger.Owner{DocumentID: documentID, CompanyID: f.company.ID, FirmID: f.firm.ID}
}

func (f fixture) key() ledger.StockKey {
	return ledger.NewStockKey(f.product.ID, f.warehouse.ID, f.firm.ID)
}

func (f fixture) draft(t *testing.T, docType document.Type, number string) *document.Document {
	t.Helper()
	doc, err := document.NewDocument(docType, number, document.Header{
		CompanyID:   f.company.ID,
		FirmID:      f.firm.ID,
		WarehouseID: f.warehouse.ID,
	}, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	price := dec("12")
	_, err = doc.AddLine(document.LineInput{ProductID: f.product.ID, Quantity: dec("5"), Unit: "kg", UnitPrice: &price})
	require.NoError(t, err)
	return doc
}
