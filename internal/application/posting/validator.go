package posting

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rule is a single guard evaluated against a job
type Rule func(ctx context.Context, job *Job) error

// Validator holds the per-type guards run before posting and before unposting.
type Validator struct {
	prePost   map[document.Type][]Rule
	preUnpost map[document.Type][]Rule
}

// NewValidator creates the validator with the standard rule table
func NewValidator() *Validator {
	return &Validator{
		prePost: map[document.Type][]Rule{
			document.TypeSale:             {requireStock},
			document.TypeTransfer:         {requireStock},
			document.TypeReturnToSupplier: {requireSource, requireReturnableQuantity, requireStock},
			document.TypeReturnFromClient: {requireSource, requireReturnableQuantity},
			document.TypeInventory:        {requireUniqueProducts},
		},
		preUnpost: map[document.Type][]Rule{
			document.TypeReceipt: {forbidPostedReturns(document.TypeReturnToSupplier)},
			document.TypeSale:    {forbidPostedReturns(document.TypeReturnFromClient)},
		},
	}
}

// BeforePost runs the pre-post rules of the document's type
func (v *Validator) BeforePost(ctx context.Context, job *Job) error {
	for _, rule := range v.prePost[job.Doc.Type] {
		if err := rule(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// BeforeUnpost runs the pre-unpost rules. Whatever the type, lots the
// document produced must not have been drawn from, and removing its rows
// must leave every balance non-negative. The keys of those lots are locked
// before their consumers are read, so a draw committed by a concurrent
// sale is seen rather than raced.
func (v *Validator) BeforeUnpost(ctx context.Context, job *Job) error {
	if err := lockProducedLots(ctx, job); err != nil {
		return err
	}
	if err := forbidConsumedLots(ctx, job); err != nil {
		return err
	}
	for _, rule := range v.preUnpost[job.Doc.Type] {
		if err := rule(ctx, job); err != nil {
			return err
		}
	}
	return requireNonNegativeAfterRemoval(ctx, job)
}

// requireStock checks that the source warehouse covers every product of the
// document. Lines of the same product are checked against their sum. The
// lots are locked first so the answer holds until the transaction ends.
func requireStock(ctx context.Context, job *Job) error {
	totals := job.Doc.QuantityByProduct()
	for _, productID := range productOrder(job.Doc) {
		requested := totals[productID]
		key := job.Key(productID, job.Doc.WarehouseID)
		lots, err := job.Engine.LockLots(ctx, key)
		if err != nil {
			return err
		}
		available := ledger.Available(lots)
		if available.LessThan(requested) {
			return withDocument(ledger.InsufficientStock(key, requested, available), job.Doc)
		}
	}
	return nil
}

// requireSource checks that a return points at a posted document of the
// right type.
func requireSource(ctx context.Context, job *Job) error {
	_, err := loadSource(ctx, job)
	return err
}

// loadSource locks the source header, so returns against the same source
// are checked one after another and each sees the ones posted before it.
func loadSource(ctx context.Context, job *Job) (*document.Document, error) {
	wantType, _ := job.Doc.Type.SourceType()
	if job.Doc.SourceDocumentID == nil {
		return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument,
			"%s %s has no source document", job.Doc.Type, job.Doc.Number)
	}
	source, err := job.Repos.Documents().FindByIDForUpdate(ctx, *job.Doc.SourceDocumentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument,
				"source document of %s %s does not exist", job.Doc.Type, job.Doc.Number)
		}
		return nil, fmt.Errorf("load source document: %w", err)
	}
	if source.Type != wantType {
		return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument,
			"%s %s must reference a %s, got %s", job.Doc.Type, job.Doc.Number, wantType, source.Type)
	}
	if !source.IsPosted() {
		return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument,
			"source document %s is not posted", source.Number)
	}
	if source.FirmID != job.Doc.FirmID {
		return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument,
			"source document %s belongs to another firm", source.Number)
	}
	return source, nil
}

// requireReturnableQuantity checks, per product, that the source document
// moved at least as much as this and every other posted return of it.
func requireReturnableQuantity(ctx context.Context, job *Job) error {
	source, err := loadSource(ctx, job)
	if err != nil {
		return err
	}
	moved := source.QuantityByProduct()

	others, err := job.Repos.Documents().FindPostedBySource(ctx, source.ID, job.Doc.Type)
	if err != nil {
		return fmt.Errorf("load earlier returns: %w", err)
	}
	returned := make(map[uuid.UUID]decimal.Decimal)
	for i := range others {
		if others[i].ID == job.Doc.ID {
			continue
		}
		for productID, qty := range others[i].QuantityByProduct() {
			returned[productID] = returned[productID].Add(qty)
		}
	}

	requested := job.Doc.QuantityByProduct()
	for _, productID := range productOrder(job.Doc) {
		left := moved[productID].Sub(returned[productID])
		if left.LessThan(requested[productID]) {
			return shared.NewDomainErrorf(shared.CodeInvalidReturnQuantity,
				"cannot return %s of product %s against %s: %s left to return",
				requested[productID], productID, source.Number, left).
				WithDetail("document_id", job.Doc.ID.String()).
				WithDetail("source_document_id", source.ID.String()).
				WithDetail("product_id", productID.String()).
				WithDetail("requested", requested[productID].String()).
				WithDetail("available", left.String())
		}
	}
	return nil
}

func requireUniqueProducts(_ context.Context, job *Job) error {
	seen := make(map[uuid.UUID]bool, len(job.Doc.Lines))
	for i := range job.Doc.Lines {
		productID := job.Doc.Lines[i].ProductID
		if seen[productID] {
			return shared.NewDomainErrorf(shared.CodeInvalidInput,
				"stock-take %s counts product %s more than once", job.Doc.Number, productID)
		}
		seen[productID] = true
	}
	return nil
}

// lockProducedLots locks every key the document put stock into, in a fixed
// order so two unposts touching the same keys cannot deadlock.
func lockProducedLots(ctx context.Context, job *Job) error {
	seen := make(map[ledger.StockKey]bool)
	keys := make([]ledger.StockKey, 0)
	for i := range job.Owned {
		op := &job.Owned[i]
		if op.Direction != ledger.DirectionIn || !op.Visible {
			continue
		}
		if key := op.Key(); !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, key := range keys {
		if _, err := job.Engine.LockLots(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// forbidConsumedLots refuses to unpost a document whose lots were drawn from.
func forbidConsumedLots(ctx context.Context, job *Job) error {
	lotIDs := make([]uuid.UUID, 0)
	for i := range job.Owned {
		if job.Owned[i].Direction == ledger.DirectionIn {
			lotIDs = append(lotIDs, job.Owned[i].ID)
		}
	}
	if len(lotIDs) == 0 {
		return nil
	}
	consumers, err := job.Repos.Operations().FindConsumers(ctx, lotIDs)
	if err != nil {
		return fmt.Errorf("find consumers: %w", err)
	}
	for _, c := range consumers {
		if c.DocumentID == job.Doc.ID {
			continue
		}
		return shared.NewDomainErrorf(shared.CodeLotInUse,
			"cannot unpost %s: stock it produced was consumed by document %s", job.Doc.Number, c.DocumentID).
			WithDetail("document_id", job.Doc.ID.String()).
			WithDetail("consumer_document_id", c.DocumentID.String()).
			WithDetail("lot_id", c.SourceOperationID.String())
	}
	return nil
}

func forbidPostedReturns(returnType document.Type) Rule {
	return func(ctx context.Context, job *Job) error {
		returns, err := job.Repos.Documents().FindPostedBySource(ctx, job.Doc.ID, returnType)
		if err != nil {
			return fmt.Errorf("load returns: %w", err)
		}
		if len(returns) > 0 {
			return shared.NewDomainErrorf(shared.CodeLotInUse,
				"cannot unpost %s: posted %s %s references it", job.Doc.Number, returnType, returns[0].Number).
				WithDetail("document_id", job.Doc.ID.String()).
				WithDetail("return_document_id", returns[0].ID.String())
		}
		return nil
	}
}

// requireNonNegativeAfterRemoval checks every key the document touched:
// taking its rows away must not leave a negative balance.
func requireNonNegativeAfterRemoval(ctx context.Context, job *Job) error {
	net := make(map[ledger.StockKey]decimal.Decimal)
	keys := make([]ledger.StockKey, 0)
	for i := range job.Owned {
		op := &job.Owned[i]
		if !op.Visible {
			continue
		}
		key := op.Key()
		if _, ok := net[key]; !ok {
			keys = append(keys, key)
		}
		net[key] = net[key].Add(op.SignedQuantity())
	}
	for _, key := range keys {
		if !net[key].IsPositive() {
			continue
		}
		lots, err := job.Engine.LockLots(ctx, key)
		if err != nil {
			return err
		}
		available := ledger.Available(lots)
		if available.LessThan(net[key]) {
			return withDocument(ledger.InsufficientStock(key, net[key], available), job.Doc)
		}
	}
	return nil
}

func productOrder(doc *document.Document) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	order := make([]uuid.UUID, 0, len(doc.Lines))
	for i := range doc.Lines {
		id := doc.Lines[i].ProductID
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	return order
}

func withDocument(err error, doc *document.Document) error {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return err
	}
	return de.WithDetail("document_id", doc.ID.String()).WithDetail("document_number", doc.Number)
}
