package posting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/application/stock"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/erp/ledger/internal/infrastructure/numbering"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// steppingClock advances one second per reading so rows written by
// consecutive posts never share a timestamp.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	db        *persistence.Database
	service   *posting.Service
	documents *posting.DocumentService
	engine    *stock.Engine
	docRepo   *persistence.GormDocumentRepository

	company    uuid.UUID
	firm       uuid.UUID
	main       uuid.UUID
	store      uuid.UUID
	flour      uuid.UUID
	bread      uuid.UUID
	consulting uuid.UUID
}

// newTestEnv wires the services over a private in-memory database seeded
// with one untaxed firm, two warehouses and three products. Flour is kept
// in kg and can be entered in bags of 25 kg.
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRegime(t, tax.RegimeUntaxed)
}

func newTestEnvWithRegime(t *testing.T, regime tax.Regime) *testEnv {
	return buildTestEnv(t, regime, nil)
}

// newTestEnvWithScope lets a test wrap the transaction scope the posting
// service runs in.
func newTestEnvWithScope(t *testing.T, wrap func(posting.TransactionScope) posting.TransactionScope) *testEnv {
	return buildTestEnv(t, tax.RegimeUntaxed, wrap)
}

func buildTestEnv(t *testing.T, regime tax.Regime, wrap func(posting.TransactionScope) posting.TransactionScope) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	companies := persistence.NewGormCompanyRepository(db.DB)
	firms := persistence.NewGormFirmRepository(db.DB)
	warehouses := persistence.NewGormWarehouseRepository(db.DB)
	products := persistence.NewGormProductRepository(db.DB)
	prices := persistence.NewGormPriceRepository(db.DB)

	rate := dec("20")
	company, err := masterdata.NewCompany("Acme", &rate)
	require.NoError(t, err)
	require.NoError(t, companies.Save(ctx, company))
	firm, err := masterdata.NewFirm(company.ID, "Acme Trading", regime)
	require.NoError(t, err)
	require.NoError(t, firms.Save(ctx, firm))

	main, err := masterdata.NewWarehouse(company.ID, "Main")
	require.NoError(t, err)
	require.NoError(t, warehouses.Save(ctx, main))
	store, err := masterdata.NewWarehouse(company.ID, "Store")
	require.NoError(t, err)
	require.NoError(t, warehouses.Save(ctx, store))

	flour, err := masterdata.NewProduct(firm.ID, "Flour", "kg", masterdata.ProductTypeStockItem)
	require.NoError(t, err)
	require.NoError(t, products.Save(ctx, flour))
	bag, err := masterdata.NewProductUnit(flour.ID, "bag", dec("25"))
	require.NoError(t, err)
	require.NoError(t, products.SaveUnit(ctx, bag))

	bread, err := masterdata.NewProduct(firm.ID, "Bread", "pcs", masterdata.ProductTypeSemiFinished)
	require.NoError(t, err)
	require.NoError(t, products.Save(ctx, bread))
	require.NoError(t, prices.SavePrice(ctx, &masterdata.ProductPrice{
		ProductID: bread.ID, FirmID: firm.ID, Kind: masterdata.PriceKindRetail, Price: dec("3.5"),
	}))

	consulting, err := masterdata.NewProduct(firm.ID, "Consulting", "h", masterdata.ProductTypeService)
	require.NoError(t, err)
	require.NoError(t, products.Save(ctx, consulting))

	clock := &steppingClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	operations := persistence.NewGormOperationRepository(db.DB)
	engine := stock.NewEngine(operations, stock.WithClock(clock.Now))
	docRepo := persistence.NewGormDocumentRepository(db.DB)

	var scope posting.TransactionScope = persistence.NewGormTransactionScope(db.DB)
	if wrap != nil {
		scope = wrap(scope)
	}
	service := posting.NewService(
		scope,
		docRepo,
		firms,
		products,
		persistence.NewProductUnitConverter(products),
		persistence.NewCompanyVATRateProvider(companies, tax.FallbackRate),
		engine,
	)
	numbers := numbering.NewSQLSequence(db.DB, numbering.NewFormat(nil, 0))
	documents := posting.NewDocumentService(docRepo, products, numbers, persistence.NewPriceListLookup(prices))
	documents.SetClock(clock.Now)

	return &testEnv{
		db:         db,
		service:    service,
		documents:  documents,
		engine:     engine,
		docRepo:    docRepo,
		company:    company.ID,
		firm:       firm.ID,
		main:       main.ID,
		store:      store.ID,
		flour:      flour.ID,
		bread:      bread.ID,
		consulting: consulting.ID,
	}
}

func (e *testEnv) key(productID, warehouseID uuid.UUID) ledger.StockKey {
	return ledger.NewStockKey(productID, warehouseID, e.firm)
}

func line(productID uuid.UUID, qty string, price *decimal.Decimal) posting.CreateLineInput {
	return posting.CreateLineInput{ProductID: productID, Quantity: dec(qty), UnitPrice: price}
}

func (e *testEnv) input(docType document.Type, lines ...posting.CreateLineInput) posting.CreateDocumentInput {
	return posting.CreateDocumentInput{
		Type:        docType,
		CompanyID:   e.company,
		FirmID:      e.firm,
		WarehouseID: e.main,
		Lines:       lines,
	}
}

func (e *testEnv) create(t *testing.T, in posting.CreateDocumentInput) *document.Document {
	t.Helper()
	doc, err := e.documents.Create(context.Background(), in)
	require.NoError(t, err)
	return doc
}

func (e *testEnv) post(t *testing.T, in posting.CreateDocumentInput) (*document.Document, *posting.Result) {
	t.Helper()
	doc := e.create(t, in)
	res, err := e.service.Post(context.Background(), doc.ID)
	require.NoError(t, err)
	return doc, res
}

func (e *testEnv) receive(t *testing.T, productID uuid.UUID, qty, price string) *document.Document {
	t.Helper()
	doc, _ := e.post(t, e.input(document.TypeReceipt, line(productID, qty, ptr(price))))
	return doc
}

func (e *testEnv) stock(t *testing.T, productID, warehouseID uuid.UUID) decimal.Decimal {
	t.Helper()
	qty, err := e.engine.AvailableStock(context.Background(), e.key(productID, warehouseID))
	require.NoError(t, err)
	return qty
}

func (e *testEnv) status(t *testing.T, id uuid.UUID) document.Status {
	t.Helper()
	doc, err := e.docRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return doc.Status
}

func (e *testEnv) operationCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.DB.Table("ledger_operations").Count(&n).Error)
	return n
}
