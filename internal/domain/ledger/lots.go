package ledger

import (
	"sort"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is an `in` row together with the quantity still open in it
type Lot struct {
	Operation Operation
	Remaining decimal.Decimal
}

// SortFIFO orders rows oldest first. IDs are time-ordered, so they break
// ties between rows written in the same instant.
func SortFIFO(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if !ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].CreatedAt.Before(ops[j].CreatedAt)
		}
		return ops[i].ID.String() < ops[j].ID.String()
	})
}

// BuildLots derives the open quantity of every visible lot of one key.
//
// Linked `out` rows reduce the lot they reference. Unlinked `out` rows
// (transfers, supplier returns, stock-take shortages) are charged against
// the oldest open lots, so the remaining quantities always add up to the
// key's balance.
func BuildLots(ops []Operation) []Lot {
	lots := make([]Lot, 0)
	index := make(map[uuid.UUID]int)

	ins := make([]Operation, 0, len(ops))
	for i := range ops {
		if ops[i].IsLot() {
			ins = append(ins, ops[i])
		}
	}
	SortFIFO(ins)
	for _, op := range ins {
		index[op.ID] = len(lots)
		lots = append(lots, Lot{Operation: op, Remaining: op.Quantity})
	}

	unlinked := decimal.Zero
	for i := range ops {
		op := ops[i]
		if op.Direction != DirectionOut || !op.Visible {
			continue
		}
		if op.SourceOperationID != nil {
			if idx, ok := index[*op.SourceOperationID]; ok {
				lot := &lots[idx]
				if op.Quantity.GreaterThan(lot.Remaining) {
					unlinked = unlinked.Add(op.Quantity.Sub(lot.Remaining))
					lot.Remaining = decimal.Zero
				} else {
					lot.Remaining = lot.Remaining.Sub(op.Quantity)
				}
				continue
			}
		}
		unlinked = unlinked.Add(op.Quantity)
	}

	for i := range lots {
		if !unlinked.IsPositive() {
			break
		}
		take := decimal.Min(lots[i].Remaining, unlinked)
		lots[i].Remaining = lots[i].Remaining.Sub(take)
		unlinked = unlinked.Sub(take)
	}
	return lots
}

// OpenLots filters out fully consumed lots
func OpenLots(lots []Lot) []Lot {
	open := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.Remaining.IsPositive() {
			open = append(open, lot)
		}
	}
	return open
}

// Available returns the open quantity across lots
func Available(lots []Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Remaining)
	}
	return total
}

// StockValue returns Σ remaining × cost price
func StockValue(lots []Lot) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Remaining.Mul(lot.Operation.CostPrice))
	}
	return total
}

// AverageCost returns the weighted cost of the open quantity, or zero when
// nothing is open.
func AverageCost(lots []Lot) decimal.Decimal {
	qty := Available(lots)
	if !qty.IsPositive() {
		return decimal.Zero
	}
	return StockValue(lots).Div(qty)
}

// Allocation is the part of a draw taken from a single lot
type Allocation struct {
	Lot      Operation
	Quantity decimal.Decimal
}

// Cost returns quantity × lot cost
func (a Allocation) Cost() decimal.Decimal {
	return a.Quantity.Mul(a.Lot.CostPrice)
}

// Draw is a complete FIFO plan for a requested quantity
type Draw struct {
	Quantity    decimal.Decimal
	TotalCost   decimal.Decimal
	Allocations []Allocation
}

// UnitCost returns the weighted cost per unit of the draw
func (d Draw) UnitCost() decimal.Decimal {
	if d.Quantity.IsZero() {
		return decimal.Zero
	}
	return d.TotalCost.Div(d.Quantity)
}

// InsufficientStock builds the error reported when a key cannot cover a quantity.
func InsufficientStock(key StockKey, requested, available decimal.Decimal) error {
	return shared.NewDomainErrorf(shared.CodeInsufficientStock,
		"insufficient stock: requested %s, available %s", requested.String(), available.String()).
		WithDetail("product_id", key.ProductID.String()).
		WithDetail("warehouse_id", key.WarehouseID.String()).
		WithDetail("firm_id", key.FirmID.String()).
		WithDetail("requested", requested.String()).
		WithDetail("available", available.String())
}

// PlanDraw walks lots oldest first and plans how qty is taken from them.
// The plan is all or nothing: when the lots cannot cover qty the result is
// an insufficient stock error and no partial plan. A zero qty yields an
// empty plan.
func PlanDraw(key StockKey, lots []Lot, qty decimal.Decimal) (Draw, error) {
	if qty.IsNegative() {
		return Draw{}, shared.NewDomainError(shared.CodeInvalidInput, "quantity cannot be negative")
	}
	draw := Draw{Quantity: qty, TotalCost: decimal.Zero}
	if qty.IsZero() {
		return draw, nil
	}

	available := Available(lots)
	if available.LessThan(qty) {
		return Draw{}, InsufficientStock(key, qty, available)
	}

	needed := qty
	for _, lot := range lots {
		if !needed.IsPositive() {
			break
		}
		if !lot.Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(lot.Remaining, needed)
		alloc := Allocation{Lot: lot.Operation, Quantity: take}
		draw.Allocations = append(draw.Allocations, alloc)
		draw.TotalCost = draw.TotalCost.Add(alloc.Cost())
		needed = needed.Sub(take)
	}
	return draw, nil
}
