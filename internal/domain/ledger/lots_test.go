package ledger

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	key   StockKey
	owner Owner
}

func newFixture() fixture {
	firmID := uuid.New()
	return fixture{
		key:   NewStockKey(uuid.New(), uuid.New(), firmID),
		owner: Owner{DocumentID: uuid.New(), CompanyID: uuid.New(), FirmID: firmID},
	}
}

func (f fixture) lot(t *testing.T, qty, cost int64, at time.Time) *Operation {
	t.Helper()
	op, err := NewInbound(f.owner, f.key.ProductID, f.key.WarehouseID, decimal.NewFromInt(qty), decimal.NewFromInt(cost), at)
	require.NoError(t, err)
	return op
}

func TestPlanDraw_ConsumesOldestFirst(t *testing.T) {
	f := newFixture()
	// inserted newest first on purpose
	l2 := f.lot(t, 5, 12, t0.Add(time.Hour))
	l1 := f.lot(t, 5, 10, t0)

	lots := BuildLots([]Operation{*l2, *l1})
	draw, err := PlanDraw(f.key, lots, decimal.NewFromInt(7))
	require.NoError(t, err)

	require.Len(t, draw.Allocations, 2)
	assert.Equal(t, l1.ID, draw.Allocations[0].Lot.ID)
	assert.Equal(t, "5", draw.Allocations[0].Quantity.String())
	assert.Equal(t, l2.ID, draw.Allocations[1].Lot.ID)
	assert.Equal(t, "2", draw.Allocations[1].Quantity.String())

	assert.Equal(t, "74", draw.TotalCost.String())
	expected := decimal.NewFromInt(5*10 + 2*12).Div(decimal.NewFromInt(7))
	assert.True(t, draw.UnitCost().Equal(expected))
}

func TestPlanDraw_AllOrNothing(t *testing.T) {
	f := newFixture()
	lots := BuildLots([]Operation{*f.lot(t, 3, 10, t0)})

	draw, err := PlanDraw(f.key, lots, decimal.NewFromInt(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Empty(t, draw.Allocations)

	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "4", de.Details["requested"])
	assert.Equal(t, "3", de.Details["available"])
}

func TestPlanDraw_ZeroQuantityIsNoop(t *testing.T) {
	f := newFixture()
	draw, err := PlanDraw(f.key, nil, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, draw.Allocations)
	assert.True(t, draw.UnitCost().IsZero())
	assert.True(t, draw.TotalCost.IsZero())
}

func TestBuildLots_SkipsConsumedAndHiddenRows(t *testing.T) {
	f := newFixture()
	l1 := f.lot(t, 5, 10, t0)
	l2 := f.lot(t, 5, 12, t0.Add(time.Minute))

	consumed, err := NewConsumption(f.owner, l1, decimal.NewFromInt(5), nil, t0.Add(time.Hour))
	require.NoError(t, err)

	hidden := f.lot(t, 100, 1, t0.Add(-time.Hour))
	hidden.Visible = false

	lots := BuildLots([]Operation{*l1, *l2, *consumed, *hidden})
	require.Len(t, lots, 2)
	assert.True(t, lots[0].Remaining.IsZero())
	assert.Equal(t, "5", lots[1].Remaining.String())

	draw, err := PlanDraw(f.key, lots, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.Len(t, draw.Allocations, 1)
	assert.Equal(t, l2.ID, draw.Allocations[0].Lot.ID)
}

func TestBuildLots_UnlinkedOutflowChargedToOldestLots(t *testing.T) {
	f := newFixture()
	l1 := f.lot(t, 5, 10, t0)
	l2 := f.lot(t, 5, 12, t0.Add(time.Minute))
	out, err := NewOutbound(f.owner, f.key.ProductID, f.key.WarehouseID, decimal.NewFromInt(6), decimal.NewFromInt(10), t0.Add(time.Hour))
	require.NoError(t, err)

	ops := []Operation{*l1, *l2, *out}
	lots := BuildLots(ops)

	assert.True(t, lots[0].Remaining.IsZero())
	assert.Equal(t, "4", lots[1].Remaining.String())
	assert.True(t, Available(lots).Equal(Balance(ops)))
}

func TestAverageCostAndStockValue(t *testing.T) {
	f := newFixture()
	l1 := f.lot(t, 5, 10, t0)
	l2 := f.lot(t, 5, 12, t0.Add(time.Minute))
	c, err := NewConsumption(f.owner, l1, decimal.NewFromInt(3), nil, t0.Add(time.Hour))
	require.NoError(t, err)

	lots := BuildLots([]Operation{*l1, *l2, *c})
	// 2×10 + 5×12
	assert.Equal(t, "80", StockValue(lots).String())
	assert.True(t, AverageCost(lots).Equal(decimal.NewFromInt(80).Div(decimal.NewFromInt(7))))

	assert.True(t, AverageCost(nil).IsZero())
	assert.True(t, StockValue(nil).IsZero())
}

func TestNewConsumption_CopiesLotCost(t *testing.T) {
	f := newFixture()
	lot := f.lot(t, 5, 10, t0)
	sale := decimal.NewFromInt(15)

	out, err := NewConsumption(f.owner, lot, decimal.NewFromInt(2), &sale, t0)
	require.NoError(t, err)
	assert.Equal(t, DirectionOut, out.Direction)
	assert.True(t, out.CostPrice.Equal(lot.CostPrice))
	require.NotNil(t, out.SourceOperationID)
	assert.Equal(t, lot.ID, *out.SourceOperationID)
	require.NotNil(t, out.SalePrice)
	assert.Equal(t, "15", out.SalePrice.String())

	_, err = NewConsumption(f.owner, out, decimal.NewFromInt(1), nil, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNewInbound_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture()
	_, err := NewInbound(f.owner, f.key.ProductID, f.key.WarehouseID, decimal.Zero, decimal.NewFromInt(1), t0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewInbound(f.owner, f.key.ProductID, f.key.WarehouseID, decimal.NewFromInt(1), decimal.NewFromInt(-1), t0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
