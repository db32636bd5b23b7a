package ledger

import (
	"context"

	"github.com/google/uuid"
)

// OperationRepository is the persistence port of the ledger. Rows are only
// ever inserted, hard-deleted per document, or hidden.
type OperationRepository interface {
	// Create inserts operations in order
	Create(ctx context.Context, ops ...*Operation) error
	// FindByKey returns every visible row of a key
	FindByKey(ctx context.Context, key StockKey) ([]Operation, error)
	// LockLots takes a row lock on the visible lots of a key and then returns
	// every visible row of the key. Must run inside a transaction.
	LockLots(ctx context.Context, key StockKey) ([]Operation, error)
	// FindByID returns a single row regardless of visibility
	FindByID(ctx context.Context, id uuid.UUID) (*Operation, error)
	// FindByDocument returns every row owned by a document
	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]Operation, error)
	// FindConsumers returns visible `out` rows referencing any of lotIDs
	FindConsumers(ctx context.Context, lotIDs []uuid.UUID) ([]Operation, error)
	// DeleteByDocument hard-deletes every row owned by a document
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	// Hide clears the visible flag of a row
	Hide(ctx context.Context, id uuid.UUID) error
}
