package posting

import (
	"context"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
)

// TransactionScope runs a unit of work. When fn returns an error every write
// made through the supplied repositories is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction.
type TransactionalRepositories interface {
	Documents() document.Repository
	Operations() ledger.OperationRepository
}
