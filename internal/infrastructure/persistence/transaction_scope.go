package persistence

import (
	"context"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements posting.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside one database transaction. An error from fn rolls
// back every write made through the supplied repositories.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos posting.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Documents() document.Repository {
	return NewGormDocumentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Operations() ledger.OperationRepository {
	return NewGormOperationRepository(r.tx)
}

var (
	_ posting.TransactionScope          = (*GormTransactionScope)(nil)
	_ posting.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
