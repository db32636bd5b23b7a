package posting_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPost_SaleConsumesOldestLotsFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.receive(t, env.flour, "5", "10")
	env.receive(t, env.flour, "5", "12")

	cost, err := env.engine.CostForQuantity(ctx, env.key(env.flour, env.main), dec("7"))
	require.NoError(t, err)
	assert.True(t, cost.Equal(dec("74")), "quoted cost %s", cost)

	_, res := env.post(t, env.input(document.TypeSale, line(env.flour, "7", ptr("20"))))
	assert.Equal(t, document.StatusPosted, res.Status)
	assert.Equal(t, 2, res.OperationsWritten)
	assert.True(t, res.TotalCost.Equal(dec("74")), "cost %s", res.TotalCost)
	assert.True(t, res.TotalRevenue.Equal(dec("140")), "revenue %s", res.TotalRevenue)
	assert.True(t, res.Profit().Equal(dec("66")))

	lots, err := env.engine.OpenLots(ctx, env.key(env.flour, env.main))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Remaining.Equal(dec("3")))
	assert.True(t, lots[0].Operation.CostPrice.Equal(dec("12")))

	value, err := env.engine.StockValue(ctx, env.key(env.flour, env.main))
	require.NoError(t, err)
	assert.True(t, value.Equal(dec("36")), "value %s", value)
}

func TestPost_BalanceEqualsInMinusOut(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")
	env.receive(t, env.flour, "2.5", "11")
	env.post(t, env.input(document.TypeSale, line(env.flour, "4", ptr("20"))))
	env.post(t, env.input(document.TypeSale, line(env.flour, "7.25", ptr("20"))))

	var ops []struct {
		Direction string
		Quantity  decimal.Decimal
	}
	require.NoError(t, env.db.DB.Table("ledger_operations").Select("direction, quantity").Scan(&ops).Error)
	sum := dec("0")
	for _, op := range ops {
		if op.Direction == string(ledger.DirectionIn) {
			sum = sum.Add(op.Quantity)
		} else {
			sum = sum.Sub(op.Quantity)
		}
	}
	assert.True(t, sum.Equal(dec("1.25")), "ledger sum %s", sum)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(sum))
}

func TestPost_InsufficientStockLeavesDocumentDraft(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")
	before := env.operationCount(t)

	// the flour line alone would fit; the bread line has no stock at all
	sale := env.create(t, env.input(document.TypeSale,
		line(env.flour, "4", ptr("20")),
		line(env.bread, "5", ptr("3")),
	))
	_, err := env.service.Post(context.Background(), sale.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, env.bread.String(), de.Details["product_id"])
	assert.Equal(t, "5", de.Details["requested"])
	assert.Equal(t, "0", de.Details["available"])

	assert.Equal(t, document.StatusDraft, env.status(t, sale.ID))
	assert.Equal(t, before, env.operationCount(t))
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}

func TestPost_SameProductOnSeveralLinesIsCheckedAsOneQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")

	sale := env.create(t, env.input(document.TypeSale,
		line(env.flour, "6", ptr("20")),
		line(env.flour, "6", ptr("20")),
	))
	_, err := env.service.Post(context.Background(), sale.ID)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}

func TestPost_HandlerFailureRollsBackEveryRow(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("disk on fire")
	env.service.RegisterHandler(document.TypeReceipt, posting.HandlerFunc(func(ctx context.Context, job *posting.Job) error {
		l := job.Doc.Lines[0]
		op, err := ledger.NewInbound(job.Owner(), l.ProductID, job.Doc.WarehouseID, l.ConvertedQuantity, l.UnitCost(), job.Now)
		if err != nil {
			return err
		}
		if err := job.Write(ctx, op); err != nil {
			return err
		}
		return boom
	}))

	doc := env.create(t, env.input(document.TypeReceipt, line(env.flour, "10", ptr("10"))))
	_, err := env.service.Post(context.Background(), doc.ID)
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(0), env.operationCount(t))
	assert.Equal(t, document.StatusDraft, env.status(t, doc.ID))
}

func TestPost_AlreadyPosted(t *testing.T) {
	env := newTestEnv(t)
	doc := env.receive(t, env.flour, "10", "10")

	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrDocumentAlreadyPosted))
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}

func TestPost_UnknownDocument(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Post(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestPost_ServiceProductsDoNotMoveStock(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, env.input(document.TypeReceipt, line(env.consulting, "3", ptr("50"))))
	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.Equal(t, int64(0), env.operationCount(t))
}

func TestPost_ConvertsUnitsToBaseQuantity(t *testing.T) {
	env := newTestEnv(t)
	in := env.input(document.TypeReceipt, line(env.flour, "2", ptr("250")))
	in.Lines[0].Unit = "bag"
	doc, res := env.post(t, in)

	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("50")))
	assert.True(t, res.TotalCost.Equal(dec("500")), "cost %s", res.TotalCost)

	lots, err := env.engine.OpenLots(context.Background(), env.key(env.flour, env.main))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Operation.CostPrice.Equal(dec("10")))

	stored, err := env.docRepo.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Lines[0].ConvertedQuantity.Equal(dec("50")))
}

func TestPost_TaxedFirmCostsAtNetPrice(t *testing.T) {
	env := newTestEnvWithRegime(t, tax.RegimeTaxed)
	doc, res := env.post(t, env.input(document.TypeReceipt, line(env.flour, "10", ptr("12"))))
	assert.True(t, res.TotalCost.Equal(dec("100")), "cost %s", res.TotalCost)

	stored, err := env.docRepo.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	l := stored.Lines[0]
	assert.True(t, l.PriceWithoutVAT.Equal(dec("10")))
	assert.True(t, l.VATAmount.Equal(dec("2")))
	assert.True(t, l.PriceWithVAT.Equal(dec("12")))

	netIn := env.input(document.TypeReceipt, line(env.flour, "1", ptr("10")))
	netIn.VATMode = tax.ModeFromNet
	_, res = env.post(t, netIn)
	assert.True(t, res.TotalCost.Equal(dec("10")), "cost %s", res.TotalCost)
}

func TestPost_TransferMovesStockAtSourceCost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.receive(t, env.flour, "5", "10")
	env.receive(t, env.flour, "5", "12")

	in := env.input(document.TypeTransfer, line(env.flour, "7", nil))
	in.TargetWarehouseID = &env.store
	_, res := env.post(t, in)
	assert.Equal(t, 2, res.OperationsWritten)
	assert.True(t, res.TotalCost.Equal(dec("74")), "cost %s", res.TotalCost)

	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("3")))
	assert.True(t, env.stock(t, env.flour, env.store).Equal(dec("7")))

	avg, err := env.engine.AverageCost(ctx, env.key(env.flour, env.store))
	require.NoError(t, err)
	assert.True(t, avg.Round(ledger.CostPlaces).Equal(dec("10.57142857")), "average %s", avg)

	// what is left in main is the younger lot
	lots, err := env.engine.OpenLots(ctx, env.key(env.flour, env.main))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Operation.CostPrice.Equal(dec("12")))
}

func TestPost_TransferIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")
	before := env.operationCount(t)

	in := env.input(document.TypeTransfer, line(env.flour, "4", nil), line(env.bread, "1", nil))
	in.TargetWarehouseID = &env.store
	doc := env.create(t, in)
	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	assert.Equal(t, before, env.operationCount(t))
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
	assert.True(t, env.stock(t, env.flour, env.store).IsZero())
}

func TestPost_ConversionCarriesSourceCost(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "1", "100")

	in := env.input(document.TypeConversion,
		posting.CreateLineInput{ProductID: env.flour, Quantity: dec("1"), Role: document.RoleSource},
		posting.CreateLineInput{ProductID: env.bread, Quantity: dec("4"), Role: document.RoleTarget},
	)
	_, res := env.post(t, in)
	assert.True(t, res.TotalCost.Equal(dec("100")))

	assert.True(t, env.stock(t, env.flour, env.main).IsZero())
	assert.True(t, env.stock(t, env.bread, env.main).Equal(dec("4")))
	avg, err := env.engine.AverageCost(context.Background(), env.key(env.bread, env.main))
	require.NoError(t, err)
	assert.True(t, avg.Equal(dec("25")), "bread cost %s", avg)
}

func TestPost_ConversionWithShortSourceWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "1", "100")
	before := env.operationCount(t)

	doc := env.create(t, env.input(document.TypeConversion,
		posting.CreateLineInput{ProductID: env.flour, Quantity: dec("2"), Role: document.RoleSource},
		posting.CreateLineInput{ProductID: env.bread, Quantity: dec("4"), Role: document.RoleTarget},
	))
	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	assert.Equal(t, before, env.operationCount(t))
}

func TestPost_ConversionNeedsBothRoles(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "1", "100")

	doc := env.create(t, env.input(document.TypeConversion,
		posting.CreateLineInput{ProductID: env.flour, Quantity: dec("1"), Role: document.RoleSource},
	))
	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrConversionValidation))
}

func TestPost_ReturnToSupplierIsBoundBySourceQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	receipt := env.receive(t, env.flour, "10", "10")

	in := env.input(document.TypeReturnToSupplier, line(env.flour, "3", nil))
	in.SourceDocumentID = &receipt.ID
	_, res := env.post(t, in)
	assert.True(t, res.TotalCost.Equal(dec("30")), "cost %s", res.TotalCost)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("7")))

	in = env.input(document.TypeReturnToSupplier, line(env.flour, "8", nil))
	in.SourceDocumentID = &receipt.ID
	second := env.create(t, in)
	_, err := env.service.Post(ctx, second.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidReturnQuantity))

	// the posted return pins the receipt
	_, err = env.service.Unpost(ctx, receipt.ID)
	assert.True(t, errors.Is(err, shared.ErrLotInUse))
}

func TestPost_ReturnFromClientRestocksAtReturnPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.receive(t, env.flour, "10", "10")
	sale, _ := env.post(t, env.input(document.TypeSale, line(env.flour, "4", ptr("20"))))

	in := env.input(document.TypeReturnFromClient, line(env.flour, "2", nil))
	in.SourceDocumentID = &sale.ID
	ret := env.create(t, in)
	assert.True(t, ret.Lines[0].UnitPrice.Equal(dec("20")), "inherited price %s", ret.Lines[0].UnitPrice)

	_, err := env.service.Post(ctx, ret.ID)
	require.NoError(t, err)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("8")))

	lots, err := env.engine.OpenLots(ctx, env.key(env.flour, env.main))
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.True(t, lots[1].Operation.CostPrice.Equal(dec("20")))

	_, err = env.service.Unpost(ctx, sale.ID)
	assert.True(t, errors.Is(err, shared.ErrLotInUse))
}

func TestPost_ReturnNeedsPostedSource(t *testing.T) {
	env := newTestEnv(t)
	draft := env.create(t, env.input(document.TypeReceipt, line(env.flour, "10", ptr("10"))))

	in := env.input(document.TypeReturnToSupplier, line(env.flour, "1", ptr("10")))
	in.SourceDocumentID = &draft.ID
	ret := env.create(t, in)
	_, err := env.service.Post(context.Background(), ret.ID)
	assert.True(t, errors.Is(err, shared.ErrMissingSourceDocument))
}

func TestPost_InventoryAdjustsToCountedQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")

	_, res := env.post(t, env.input(document.TypeInventory, line(env.flour, "7", nil)))
	assert.Equal(t, 1, res.OperationsWritten)
	assert.True(t, res.TotalCost.Equal(dec("-30")), "cost %s", res.TotalCost)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("7")))

	_, res = env.post(t, env.input(document.TypeInventory, line(env.flour, "9", nil)))
	assert.True(t, res.TotalCost.Equal(dec("20")), "cost %s", res.TotalCost)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("9")))

	// a matching count writes nothing
	_, res = env.post(t, env.input(document.TypeInventory, line(env.flour, "9", nil)))
	assert.Equal(t, 0, res.OperationsWritten)
}

func TestPost_InventoryRejectsDuplicateProducts(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, env.input(document.TypeInventory, line(env.flour, "1", nil), line(env.flour, "2", nil)))
	_, err := env.service.Post(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestUnpost_BlockedWhileLotsAreConsumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	receipt := env.receive(t, env.flour, "10", "10")
	sale, _ := env.post(t, env.input(document.TypeSale, line(env.flour, "4", ptr("20"))))

	_, err := env.service.Unpost(ctx, receipt.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLotInUse))
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, sale.ID.String(), de.Details["consumer_document_id"])
	assert.Equal(t, document.StatusPosted, env.status(t, receipt.ID))

	res, err := env.service.Unpost(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.OperationsDeleted)
	assert.Equal(t, document.StatusDraft, res.Status)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))

	_, err = env.service.Unpost(ctx, receipt.ID)
	require.NoError(t, err)
	assert.True(t, env.stock(t, env.flour, env.main).IsZero())
	assert.Equal(t, int64(0), env.operationCount(t))

	// a draft again, so it can be posted once more
	_, err = env.service.Post(ctx, receipt.ID)
	require.NoError(t, err)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}

func TestUnpost_TransferBlockedWhenTargetStockIsGone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.receive(t, env.flour, "10", "10")
	in := env.input(document.TypeTransfer, line(env.flour, "6", nil))
	in.TargetWarehouseID = &env.store
	transfer, _ := env.post(t, in)

	sale := env.input(document.TypeSale, line(env.flour, "5", ptr("20")))
	sale.WarehouseID = env.store
	env.post(t, sale)

	_, err := env.service.Unpost(ctx, transfer.ID)
	require.Error(t, err)
	assert.Equal(t, document.StatusPosted, env.status(t, transfer.ID))
	assert.True(t, env.stock(t, env.flour, env.store).Equal(dec("1")))
}

func TestUnpost_NotPosted(t *testing.T) {
	env := newTestEnv(t)
	doc := env.create(t, env.input(document.TypeReceipt, line(env.flour, "1", ptr("1"))))
	_, err := env.service.Unpost(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, shared.ErrDocumentNotPosted))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		p.events = append(p.events, e.EventType())
	}
	return nil
}

type failingSink struct {
	panics bool
	calls  int
}

func (s *failingSink) LogEvent(context.Context, posting.AuditEvent) error {
	s.calls++
	if s.panics {
		panic("audit store unavailable")
	}
	return errors.New("audit store unavailable")
}

func TestPost_PublishesEventsAndIgnoresAuditFailures(t *testing.T) {
	for _, panics := range []bool{false, true} {
		env := newTestEnv(t)
		pub := &recordingPublisher{}
		sink := &failingSink{panics: panics}
		env.service.SetEventPublisher(pub)
		env.service.SetAuditSink(sink)

		doc := env.receive(t, env.flour, "10", "10")
		_, err := env.service.Unpost(context.Background(), doc.ID)
		require.NoError(t, err)

		assert.Equal(t, []string{document.EventTypeDocumentPosted, document.EventTypeDocumentUnposted}, pub.events)
		assert.Equal(t, 2, sink.calls)
	}
}

func TestPost_ConcurrentSalesNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, env.flour, "10", "10")

	sales := make([]*document.Document, 5)
	for i := range sales {
		sales[i] = env.create(t, env.input(document.TypeSale, line(env.flour, "3", ptr("20"))))
	}

	var (
		mu       sync.Mutex
		posted   int
		rejected int
	)
	var g errgroup.Group
	for _, sale := range sales {
		g.Go(func() error {
			_, err := env.service.Post(context.Background(), sale.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				posted++
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 3, posted)
	assert.Equal(t, 2, rejected)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("1")))
}
