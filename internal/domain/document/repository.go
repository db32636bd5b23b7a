package document

import (
	"context"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Filter narrows document listings
type Filter struct {
	shared.Filter
	CompanyID *uuid.UUID
	FirmID    *uuid.UUID
	Type      *Type
	Status    *Status
}

// Repository is the persistence port for documents
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// FindByIDForUpdate locks the header row for the rest of the transaction
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)
	FindAll(ctx context.Context, filter Filter) ([]Document, int64, error)
	// FindPostedBySource returns posted documents of docType referencing sourceID
	FindPostedBySource(ctx context.Context, sourceID uuid.UUID, docType Type) ([]Document, error)
	// Save inserts or updates the header and replaces the lines
	Save(ctx context.Context, doc *Document) error
	// UpdateStatus persists a status flip and derived line amounts, checking the version
	UpdateStatus(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}
