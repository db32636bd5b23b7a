// Package stock implements the FIFO stock engine over the operation ledger:
// availability, costing, valuation and the consuming FIFO draw.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine answers stock questions for a single (product, warehouse, firm) key
// and performs FIFO consumption. Reads are side-effect free; ConsumeFIFO and
// HideOperation write and must run on a transaction-bound repository.
type Engine struct {
	repo   ledger.OperationRepository
	clock  func() time.Time
	logger *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the time source used to stamp written rows
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine reading from repo
func NewEngine(repo ledger.OperationRepository, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRepository returns a copy of the engine bound to repo, typically the
// ledger repository of an open transaction.
func (e *Engine) WithRepository(repo ledger.OperationRepository) *Engine {
	cp := *e
	cp.repo = repo
	return &cp
}

// Now returns the engine clock reading
func (e *Engine) Now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) lots(ctx context.Context, key ledger.StockKey) ([]ledger.Lot, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	ops, err := e.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load ledger rows: %w", err)
	}
	return ledger.BuildLots(ops), nil
}

// LockLots takes the row lock on the key's lots and returns their open state.
// Every consuming path goes through here before deciding how much to draw.
func (e *Engine) LockLots(ctx context.Context, key ledger.StockKey) ([]ledger.Lot, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	ops, err := e.repo.LockLots(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock lots: %w", err)
	}
	return ledger.BuildLots(ops), nil
}

// AvailableStock returns Σ in − Σ out over visible rows
func (e *Engine) AvailableStock(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	ops, err := e.repo.FindByKey(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load ledger rows: %w", err)
	}
	return ledger.Balance(ops), nil
}

// OpenLots returns lots that still hold stock, oldest first
func (e *Engine) OpenLots(ctx context.Context, key ledger.StockKey) ([]ledger.Lot, error) {
	lots, err := e.lots(ctx, key)
	if err != nil {
		return nil, err
	}
	return ledger.OpenLots(lots), nil
}

// CostForQuantity returns the FIFO unit cost of qty. It never answers for a
// partial quantity: a short key fails with InsufficientStock.
func (e *Engine) CostForQuantity(ctx context.Context, key ledger.StockKey, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsZero() {
		return decimal.Zero, nil
	}
	lots, err := e.lots(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	draw, err := ledger.PlanDraw(key, lots, qty)
	if err != nil {
		return decimal.Zero, err
	}
	return draw.UnitCost(), nil
}

// PlanLocked locks the key and plans a FIFO draw of qty without writing.
func (e *Engine) PlanLocked(ctx context.Context, key ledger.StockKey, qty decimal.Decimal) (ledger.Draw, error) {
	if qty.IsZero() {
		return ledger.Draw{Quantity: decimal.Zero, TotalCost: decimal.Zero}, nil
	}
	lots, err := e.LockLots(ctx, key)
	if err != nil {
		return ledger.Draw{}, err
	}
	return ledger.PlanDraw(key, lots, qty)
}

// ConsumeFIFO draws qty from the oldest lots of the key and writes one `out`
// row per lot touched, each carrying the lot's cost and salePrice. The lots
// are locked before the plan is made; nothing is written unless the whole
// quantity is covered.
func (e *Engine) ConsumeFIFO(ctx context.Context, owner ledger.Owner, productID, warehouseID uuid.UUID, qty decimal.Decimal, salePrice *decimal.Decimal) (ledger.Draw, error) {
	key := ledger.NewStockKey(productID, warehouseID, owner.FirmID)
	draw, err := e.PlanLocked(ctx, key, qty)
	if err != nil {
		return ledger.Draw{}, err
	}
	if len(draw.Allocations) == 0 {
		return draw, nil
	}

	at := e.Now()
	ops := make([]*ledger.Operation, 0, len(draw.Allocations))
	for i := range draw.Allocations {
		alloc := draw.Allocations[i]
		op, err := ledger.NewConsumption(owner, &alloc.Lot, alloc.Quantity, salePrice, at)
		if err != nil {
			return ledger.Draw{}, err
		}
		ops = append(ops, op)
	}
	if err := e.repo.Create(ctx, ops...); err != nil {
		return ledger.Draw{}, fmt.Errorf("write consumption rows: %w", err)
	}

	e.logger.Debug("fifo consumption written",
		zap.String("document_id", owner.DocumentID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.String("quantity", qty.String()),
		zap.String("total_cost", draw.TotalCost.String()),
		zap.Int("lots", len(ops)),
	)
	return draw, nil
}

// AverageCost returns the weighted cost of the open quantity, 0 without stock
func (e *Engine) AverageCost(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	lots, err := e.lots(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.AverageCost(lots), nil
}

// StockValue returns Σ remaining × cost over open lots
func (e *Engine) StockValue(ctx context.Context, key ledger.StockKey) (decimal.Decimal, error) {
	lots, err := e.lots(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.StockValue(lots), nil
}

// HideOperation soft-deletes a ledger row. A lot that visible `out` rows
// were drawn from cannot be hidden, and hiding a lot may not push the
// key's balance below zero. The key is locked before consumers are read.
func (e *Engine) HideOperation(ctx context.Context, id uuid.UUID) error {
	op, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !op.Visible {
		return nil
	}
	if op.Direction == ledger.DirectionIn {
		lots, err := e.LockLots(ctx, op.Key())
		if err != nil {
			return err
		}
		consumers, err := e.repo.FindConsumers(ctx, []uuid.UUID{op.ID})
		if err != nil {
			return fmt.Errorf("find consumers: %w", err)
		}
		if len(consumers) > 0 {
			return shared.NewDomainErrorf(shared.CodeLotInUse, "lot %s is referenced by %d outbound rows", op.ID, len(consumers)).
				WithDetail("operation_id", op.ID.String())
		}
		available := ledger.Available(lots)
		if available.LessThan(op.Quantity) {
			return ledger.InsufficientStock(op.Key(), op.Quantity, available)
		}
	}
	return e.repo.Hide(ctx, id)
}
