package document

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeDocument is the aggregate type for document events
const AggregateTypeDocument = "Document"

// Event type constants
const (
	EventTypeDocumentPosted   = "DocumentPosted"
	EventTypeDocumentUnposted = "DocumentUnposted"
)

// DocumentPostedEvent is raised when a document reaches posted status
type DocumentPostedEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID `json:"document_id"`
	Number       string    `json:"number"`
	DocumentType Type      `json:"document_type"`
	FirmID       uuid.UUID `json:"firm_id"`
}

// DocumentUnpostedEvent is raised when a posted document returns to draft
type DocumentUnpostedEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID `json:"document_id"`
	Number       string    `json:"number"`
	DocumentType Type      `json:"document_type"`
	FirmID       uuid.UUID `json:"firm_id"`
}

// NewDocumentPostedEvent creates a DocumentPostedEvent
func NewDocumentPostedEvent(d *Document) *DocumentPostedEvent {
	return &DocumentPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentPosted, AggregateTypeDocument, d.ID, d.CompanyID),
		DocumentID:      d.ID,
		Number:          d.Number,
		DocumentType:    d.Type,
		FirmID:          d.FirmID,
	}
}

// NewDocumentUnpostedEvent creates a DocumentUnpostedEvent
func NewDocumentUnpostedEvent(d *Document) *DocumentUnpostedEvent {
	return &DocumentUnpostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentUnposted, AggregateTypeDocument, d.ID, d.CompanyID),
		DocumentID:      d.ID,
		Number:          d.Number,
		DocumentType:    d.Type,
		FirmID:          d.FirmID,
	}
}
