package posting

import (
	"context"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handler writes the ledger effect of one document type. It runs after the
// validator and inside the posting transaction.
type Handler interface {
	Post(ctx context.Context, job *Job) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, job *Job) error

// Post calls f
func (f HandlerFunc) Post(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// DefaultHandlers returns the handler table keyed by document type
func DefaultHandlers() map[document.Type]Handler {
	return map[document.Type]Handler{
		document.TypeReceipt:          HandlerFunc(postInbound),
		document.TypeStockIn:          HandlerFunc(postInbound),
		document.TypeSale:             HandlerFunc(postSale),
		document.TypeTransfer:         HandlerFunc(postTransfer),
		document.TypeReturnToSupplier: HandlerFunc(postReturnToSupplier),
		document.TypeReturnFromClient: HandlerFunc(postReturnFromClient),
		document.TypeInventory:        HandlerFunc(postInventory),
		document.TypeConversion:       HandlerFunc(postConversion),
	}
}

// postInbound writes one lot per line at the net price per base unit.
func postInbound(ctx context.Context, job *Job) error {
	for i := range job.Doc.Lines {
		line := &job.Doc.Lines[i]
		op, err := ledger.NewInbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, line.UnitCost(), job.Now)
		if err != nil {
			return err
		}
		if err := job.Write(ctx, op); err != nil {
			return err
		}
		job.AddCost(op.Value())
	}
	return nil
}

func postSale(ctx context.Context, job *Job) error {
	for i := range job.Doc.Lines {
		line := &job.Doc.Lines[i]
		salePrice := line.UnitCost()
		draw, err := job.Engine.ConsumeFIFO(ctx, job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, &salePrice)
		if err != nil {
			return err
		}
		job.result.OperationsWritten += len(draw.Allocations)
		job.AddCost(draw.TotalCost)
		job.AddRevenue(salePrice.Mul(line.ConvertedQuantity))
	}
	return nil
}

// postTransfer moves stock between warehouses as an unlinked out/in pair
// priced at the source's FIFO cost. Availability of every line was checked
// by the validator before this runs.
func postTransfer(ctx context.Context, job *Job) error {
	target := *job.Doc.TargetWarehouseID
	for i := range job.Doc.Lines {
		line := &job.Doc.Lines[i]
		key := job.Key(line.ProductID, job.Doc.WarehouseID)
		draw, err := job.Engine.PlanLocked(ctx, key, line.ConvertedQuantity)
		if err != nil {
			return err
		}
		cost := draw.UnitCost()

		out, err := ledger.NewOutbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, cost, job.Now)
		if err != nil {
			return err
		}
		in, err := ledger.NewInbound(job.Owner(), line.ProductID, target, line.ConvertedQuantity, cost, job.Now)
		if err != nil {
			return err
		}
		if err := job.Write(ctx, out, in); err != nil {
			return err
		}
		job.AddCost(draw.TotalCost)
	}
	return nil
}

func postReturnToSupplier(ctx context.Context, job *Job) error {
	for i := range job.Doc.Lines {
		line := &job.Doc.Lines[i]
		op, err := ledger.NewOutbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, line.UnitCost(), job.Now)
		if err != nil {
			return err
		}
		if err := job.Write(ctx, op); err != nil {
			return err
		}
		job.AddCost(op.Value())
	}
	return nil
}

// postReturnFromClient puts returned goods back as fresh lots priced at the
// return's own net price.
func postReturnFromClient(ctx context.Context, job *Job) error {
	return postInbound(ctx, job)
}

// postInventory writes a single adjusting row per counted line.
func postInventory(ctx context.Context, job *Job) error {
	for i := range job.Doc.Lines {
		line := &job.Doc.Lines[i]
		key := job.Key(line.ProductID, job.Doc.WarehouseID)
		lots, err := job.Engine.LockLots(ctx, key)
		if err != nil {
			return err
		}
		balance := ledger.Available(lots)
		diff := line.ConvertedQuantity.Sub(balance)

		switch {
		case diff.IsPositive():
			cost := ledger.AverageCost(lots)
			if !balance.IsPositive() {
				cost = line.UnitCost()
			}
			op, err := ledger.NewInbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, diff, cost, job.Now)
			if err != nil {
				return err
			}
			if err := job.Write(ctx, op); err != nil {
				return err
			}
			job.AddCost(op.Value())
		case diff.IsNegative():
			shortage := diff.Neg()
			draw, err := ledger.PlanDraw(key, lots, shortage)
			if err != nil {
				return err
			}
			op, err := ledger.NewOutbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, shortage, draw.UnitCost(), job.Now)
			if err != nil {
				return err
			}
			if err := job.Write(ctx, op); err != nil {
				return err
			}
			job.AddCost(draw.TotalCost.Neg())
		}
	}
	return nil
}

// postConversion consumes the source lines and produces the target lines at
// a unit cost that carries the whole source cost over to the targets.
func postConversion(ctx context.Context, job *Job) error {
	sources := job.Doc.LinesByRole(document.RoleSource)
	targets := job.Doc.LinesByRole(document.RoleTarget)
	if len(sources) == 0 || len(targets) == 0 {
		return shared.NewDomainErrorf(shared.CodeConversionValidation,
			"conversion %s needs at least one source and one target line", job.Doc.Number)
	}

	// cost every source first so a short source fails before anything is written
	perProduct := make(map[uuid.UUID]decimal.Decimal)
	order := make([]uuid.UUID, 0)
	for _, line := range sources {
		if _, seen := perProduct[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		perProduct[line.ProductID] = perProduct[line.ProductID].Add(line.ConvertedQuantity)
	}
	totalSourceCost := decimal.Zero
	for _, productID := range order {
		draw, err := job.Engine.PlanLocked(ctx, job.Key(productID, job.Doc.WarehouseID), perProduct[productID])
		if err != nil {
			return err
		}
		totalSourceCost = totalSourceCost.Add(draw.TotalCost)
	}

	targetQty := decimal.Zero
	for _, line := range targets {
		targetQty = targetQty.Add(line.ConvertedQuantity)
	}
	if !targetQty.IsPositive() {
		return shared.NewDomainErrorf(shared.CodeConversionValidation,
			"conversion %s target quantities sum to zero", job.Doc.Number)
	}
	targetUnitCost := totalSourceCost.Div(targetQty)

	for _, line := range sources {
		draw, err := job.Engine.ConsumeFIFO(ctx, job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, nil)
		if err != nil {
			return err
		}
		job.result.OperationsWritten += len(draw.Allocations)
	}

	for _, line := range targets {
		op, err := ledger.NewInbound(job.Owner(), line.ProductID, job.Doc.WarehouseID, line.ConvertedQuantity, targetUnitCost, job.Now)
		if err != nil {
			return err
		}
		if err := job.Write(ctx, op); err != nil {
			return err
		}
	}
	job.AddCost(totalSourceCost)
	return nil
}
