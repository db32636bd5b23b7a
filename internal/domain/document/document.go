package document

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document is the aggregate root of every stock document
type Document struct {
	shared.CompanyAggregateRoot
	Number            string
	Type              Type
	Status            Status
	FirmID            uuid.UUID
	WarehouseID       uuid.UUID
	TargetWarehouseID *uuid.UUID
	CounterpartyID    *uuid.UUID
	SourceDocumentID  *uuid.UUID
	VATMode           tax.Mode
	DocumentDate      time.Time
	PostedAt          *time.Time
	Comment           string
	Lines             []LineItem
}

// Header carries the fields needed to open a document
type Header struct {
	CompanyID         uuid.UUID
	FirmID            uuid.UUID
	WarehouseID       uuid.UUID
	TargetWarehouseID *uuid.UUID
	CounterpartyID    *uuid.UUID
	SourceDocumentID  *uuid.UUID
	VATMode           tax.Mode
	DocumentDate      time.Time
	Comment           string
}

// NewDocument opens a draft document. The number is assigned once here and
// never changes.
func NewDocument(docType Type, number string, h Header, now time.Time) (*Document, error) {
	if !docType.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown document type %q", docType)
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "document number cannot be empty")
	}
	if h.CompanyID == uuid.Nil || h.FirmID == uuid.Nil || h.WarehouseID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "document requires company, firm and warehouse")
	}
	if docType == TypeTransfer {
		if h.TargetWarehouseID == nil || *h.TargetWarehouseID == uuid.Nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "transfer requires a target warehouse")
		}
		if *h.TargetWarehouseID == h.WarehouseID {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "transfer target warehouse must differ from source")
		}
	}
	if docType.RequiresSource() && (h.SourceDocumentID == nil || *h.SourceDocumentID == uuid.Nil) {
		return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument, "%s requires a source document", docType)
	}
	mode := h.VATMode
	if mode == "" {
		mode = tax.ModeFromGross
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown VAT mode %q", mode)
	}
	date := h.DocumentDate
	if date.IsZero() {
		date = now
	}

	return &Document{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(h.CompanyID, now),
		Number:               number,
		Type:                 docType,
		Status:               StatusDraft,
		FirmID:               h.FirmID,
		WarehouseID:          h.WarehouseID,
		TargetWarehouseID:    h.TargetWarehouseID,
		CounterpartyID:       h.CounterpartyID,
		SourceDocumentID:     h.SourceDocumentID,
		VATMode:              mode,
		DocumentDate:         date.UTC(),
		Comment:              h.Comment,
		Lines:                make([]LineItem, 0),
	}, nil
}

// IsPosted returns true when the document is posted
func (d *Document) IsPosted() bool {
	return d.Status == StatusPosted
}

// CanModify rejects changes to posted documents
func (d *Document) CanModify() error {
	if d.IsPosted() {
		return shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted, "document %s is posted and cannot be modified", d.Number)
	}
	return nil
}

// EnsureDeletable rejects deleting a posted document
func (d *Document) EnsureDeletable() error {
	if d.IsPosted() {
		return shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted, "document %s is posted; unpost it before deleting", d.Number)
	}
	return nil
}

// AddLine appends a line to a draft document
func (d *Document) AddLine(in LineInput) (*LineItem, error) {
	if err := d.CanModify(); err != nil {
		return nil, err
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "line requires a product")
	}
	if d.Type == TypeInventory {
		if in.Quantity.IsNegative() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "counted quantity cannot be negative")
		}
	} else if !in.Quantity.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "line quantity must be positive")
	}
	if !in.Role.IsValid() {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "unknown line role %q", in.Role)
	}
	if d.Type == TypeConversion && in.Role == RoleNone {
		return nil, shared.NewDomainError(shared.CodeConversionValidation, "conversion lines need a source or target role")
	}
	if d.Type != TypeConversion && in.Role != RoleNone {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "only conversion lines carry a role")
	}
	if in.VATPercent != nil && in.VATPercent.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "VAT percent cannot be negative")
	}
	price := decimal.Zero
	if in.UnitPrice != nil {
		if in.UnitPrice.IsNegative() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "unit price cannot be negative")
		}
		price = *in.UnitPrice
	}

	line := LineItem{
		ID:         shared.NewID(),
		DocumentID: d.ID,
		LineNo:     len(d.Lines) + 1,
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		Unit:       strings.TrimSpace(in.Unit),
		UnitPrice:  price,
		VATPercent: in.VATPercent,
		Role:       in.Role,
	}
	d.Lines = append(d.Lines, line)
	return &d.Lines[len(d.Lines)-1], nil
}

// RemoveLine drops a line from a draft document and renumbers the rest
func (d *Document) RemoveLine(lineID uuid.UUID) error {
	if err := d.CanModify(); err != nil {
		return err
	}
	for i := range d.Lines {
		if d.Lines[i].ID != lineID {
			continue
		}
		d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
		for j := range d.Lines {
			d.Lines[j].LineNo = j + 1
		}
		return nil
	}
	return shared.ErrNotFound
}

// LinesByRole returns the lines carrying role
func (d *Document) LinesByRole(role Role) []*LineItem {
	out := make([]*LineItem, 0)
	for i := range d.Lines {
		if d.Lines[i].Role == role {
			out = append(out, &d.Lines[i])
		}
	}
	return out
}

// QuantityByProduct sums converted quantities per product
func (d *Document) QuantityByProduct() map[uuid.UUID]decimal.Decimal {
	totals := make(map[uuid.UUID]decimal.Decimal)
	for i := range d.Lines {
		line := &d.Lines[i]
		totals[line.ProductID] = totals[line.ProductID].Add(line.ConvertedQuantity)
	}
	return totals
}

// ValidateStructure checks the parts of a document that do not depend on
// stock: at least one line, and a source and target line on conversions.
func (d *Document) ValidateStructure() error {
	if len(d.Lines) == 0 {
		return shared.NewDomainErrorf(shared.CodeInvalidInput, "document %s has no lines", d.Number)
	}
	if d.Type == TypeConversion {
		if len(d.LinesByRole(RoleSource)) == 0 {
			return shared.NewDomainErrorf(shared.CodeConversionValidation, "conversion %s has no source line", d.Number)
		}
		if len(d.LinesByRole(RoleTarget)) == 0 {
			return shared.NewDomainErrorf(shared.CodeConversionValidation, "conversion %s has no target line", d.Number)
		}
	}
	return nil
}

// MarkPosted flips a draft document to posted
func (d *Document) MarkPosted(now time.Time) error {
	if d.IsPosted() {
		return shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted, "document %s is already posted", d.Number)
	}
	for i := range d.Lines {
		if !d.Lines[i].AmountsConsistent() {
			return shared.NewDomainErrorf(shared.CodeInvalidInput, "line %d of %s has inconsistent VAT amounts", d.Lines[i].LineNo, d.Number)
		}
	}
	at := now.UTC()
	d.Status = StatusPosted
	d.PostedAt = &at
	d.Touch(at)
	d.IncrementVersion()
	d.AddDomainEvent(NewDocumentPostedEvent(d))
	return nil
}

// MarkUnposted flips a posted document back to draft
func (d *Document) MarkUnposted(now time.Time) error {
	if !d.IsPosted() {
		return shared.NewDomainErrorf(shared.CodeDocumentNotPosted, "document %s is not posted", d.Number)
	}
	d.Status = StatusDraft
	d.PostedAt = nil
	d.Touch(now)
	d.IncrementVersion()
	d.AddDomainEvent(NewDocumentUnpostedEvent(d))
	return nil
}
