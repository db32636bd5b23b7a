package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/stock"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job is the state shared by the validator and the handler while one
// document is posted or unposted. Everything it touches is bound to the
// same transaction.
type Job struct {
	Doc      *document.Document
	Firm     *masterdata.Firm
	Products map[uuid.UUID]*masterdata.Product
	Repos    TransactionalRepositories
	Engine   *stock.Engine
	Now      time.Time

	// Owned holds the document's existing rows during unpost
	Owned []ledger.Operation

	result *Result
}

// Owner returns the ledger owner for rows written by the document
func (j *Job) Owner() ledger.Owner {
	return ledger.Owner{
		DocumentID: j.Doc.ID,
		CompanyID:  j.Doc.CompanyID,
		FirmID:     j.Doc.FirmID,
	}
}

// Key returns the stock key of product in warehouse for the document's firm
func (j *Job) Key(productID, warehouseID uuid.UUID) ledger.StockKey {
	return ledger.NewStockKey(productID, warehouseID, j.Doc.FirmID)
}

// Write inserts operations and counts them on the result
func (j *Job) Write(ctx context.Context, ops ...*ledger.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	if err := j.Repos.Operations().Create(ctx, ops...); err != nil {
		return fmt.Errorf("write ledger rows: %w", err)
	}
	j.result.OperationsWritten += len(ops)
	return nil
}

// AddCost adds to the result's total cost
func (j *Job) AddCost(amount decimal.Decimal) {
	j.result.TotalCost = j.result.TotalCost.Add(amount)
}

// AddRevenue adds to the result's total revenue
func (j *Job) AddRevenue(amount decimal.Decimal) {
	j.result.TotalRevenue = j.result.TotalRevenue.Add(amount)
}

// Result summarizes a post or unpost
type Result struct {
	DocumentID        uuid.UUID
	Number            string
	Type              document.Type
	Status            document.Status
	OperationsWritten int
	OperationsDeleted int64
	TotalCost         decimal.Decimal
	TotalRevenue      decimal.Decimal
}

// Profit returns revenue minus cost; meaningful for sales
func (r Result) Profit() decimal.Decimal {
	return r.TotalRevenue.Sub(r.TotalCost)
}
