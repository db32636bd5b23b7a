package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateDocumentInput describes a new draft document
type CreateDocumentInput struct {
	Type              document.Type     `validate:"required"`
	CompanyID         uuid.UUID         `validate:"required"`
	FirmID            uuid.UUID         `validate:"required"`
	WarehouseID       uuid.UUID         `validate:"required"`
	TargetWarehouseID *uuid.UUID        `validate:"omitempty"`
	CounterpartyID    *uuid.UUID        `validate:"omitempty"`
	SourceDocumentID  *uuid.UUID        `validate:"omitempty"`
	VATMode           tax.Mode          `validate:"omitempty,oneof=from_gross from_net"`
	DocumentDate      time.Time         `validate:"-"`
	Comment           string            `validate:"max=1000"`
	Lines             []CreateLineInput `validate:"required,min=1,dive"`
}

// CreateLineInput describes one line of a new document
type CreateLineInput struct {
	ProductID  uuid.UUID        `validate:"required"`
	Quantity   decimal.Decimal  `validate:"-"`
	Unit       string           `validate:"max=20"`
	UnitPrice  *decimal.Decimal `validate:"-"`
	VATPercent *decimal.Decimal `validate:"-"`
	Role       document.Role    `validate:"omitempty,oneof=source target"`
}

// DocumentService creates, reads and deletes documents. Posting lives in Service.
type DocumentService struct {
	documents document.Repository
	products  masterdata.ProductRepository
	numbers   NumberGenerator
	prices    PriceLookup
	validate  *validator.Validate
	audit     AuditSink
	logger    *zap.Logger
	clock     func() time.Time
}

// NewDocumentService creates a DocumentService
func NewDocumentService(
	documents document.Repository,
	products masterdata.ProductRepository,
	numbers NumberGenerator,
	prices PriceLookup,
) *DocumentService {
	return &DocumentService{
		documents: documents,
		products:  products,
		numbers:   numbers,
		prices:    prices,
		validate:  validator.New(),
		logger:    zap.NewNop(),
		clock:     time.Now,
	}
}

// SetAuditSink sets the audit sink
func (s *DocumentService) SetAuditSink(sink AuditSink) {
	s.audit = sink
}

// SetLogger sets the service logger
func (s *DocumentService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock overrides the time source
func (s *DocumentService) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Create opens a draft document with its lines and assigns its number.
// A sale line without a price gets the firm's retail list price; a return
// line without a price inherits the source document's price for the product.
func (s *DocumentService) Create(ctx context.Context, in CreateDocumentInput) (*document.Document, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "invalid document: %v", err)
	}

	var source *document.Document
	if in.Type.RequiresSource() && in.SourceDocumentID != nil {
		found, err := s.documents.FindByID(ctx, *in.SourceDocumentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument, "source document %s does not exist", *in.SourceDocumentID)
			}
			return nil, fmt.Errorf("load source document: %w", err)
		}
		wantType, _ := in.Type.SourceType()
		if found.Type != wantType {
			return nil, shared.NewDomainErrorf(shared.CodeMissingSourceDocument, "%s must reference a %s, got %s", in.Type, wantType, found.Type)
		}
		source = found
	}

	// validate the header before consuming a number
	header := document.Header{
		CompanyID:         in.CompanyID,
		FirmID:            in.FirmID,
		WarehouseID:       in.WarehouseID,
		TargetWarehouseID: in.TargetWarehouseID,
		CounterpartyID:    in.CounterpartyID,
		SourceDocumentID:  in.SourceDocumentID,
		VATMode:           in.VATMode,
		DocumentDate:      in.DocumentDate,
		Comment:           in.Comment,
	}
	now := s.clock()
	if _, err := document.NewDocument(in.Type, "pending", header, now); err != nil {
		return nil, err
	}

	number, err := s.numbers.Next(ctx, in.Type)
	if err != nil {
		return nil, fmt.Errorf("assign document number: %w", err)
	}
	doc, err := document.NewDocument(in.Type, number, header, now)
	if err != nil {
		return nil, err
	}

	for i, li := range in.Lines {
		lineIn := document.LineInput{
			ProductID:  li.ProductID,
			Quantity:   li.Quantity,
			Unit:       li.Unit,
			UnitPrice:  li.UnitPrice,
			VATPercent: li.VATPercent,
			Role:       li.Role,
		}
		if err := s.fillDefaults(ctx, doc, source, &lineIn); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if _, err := doc.AddLine(lineIn); err != nil {
			return nil, err
		}
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("type", doc.Type.String()),
		zap.Int("lines", len(doc.Lines)),
	)
	s.logEvent(ctx, AuditEvent{
		Action:   "document.create",
		Message:  fmt.Sprintf("document %s created", doc.Number),
		Severity: SeverityInfo,
		Context:  map[string]any{"document_id": doc.ID.String(), "type": doc.Type.String()},
	})
	return doc, nil
}

func (s *DocumentService) fillDefaults(ctx context.Context, doc *document.Document, source *document.Document, line *document.LineInput) error {
	product, err := s.products.FindByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainErrorf(shared.CodeInvalidInput, "product %s does not exist", line.ProductID)
		}
		return fmt.Errorf("load product: %w", err)
	}
	if line.Unit == "" {
		line.Unit = product.BaseUnit
	}
	if line.VATPercent == nil && product.VATRate != nil {
		rate := *product.VATRate
		line.VATPercent = &rate
	}
	if line.UnitPrice != nil {
		return nil
	}

	switch {
	case doc.Type == document.TypeSale && s.prices != nil:
		price, err := s.prices.GetPrice(ctx, line.ProductID, doc.FirmID, masterdata.PriceKindRetail)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("look up price: %w", err)
		}
		line.UnitPrice = &price
	case source != nil:
		for i := range source.Lines {
			if source.Lines[i].ProductID == line.ProductID {
				price := source.Lines[i].UnitPrice
				line.UnitPrice = &price
				break
			}
		}
	}
	return nil
}

// Get returns a document with its lines
func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	return s.documents.FindByID(ctx, id)
}

// List returns a page of documents
func (s *DocumentService) List(ctx context.Context, filter document.Filter) (shared.Paginated[document.Document], error) {
	docs, total, err := s.documents.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[document.Document]{}, err
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return shared.NewPaginated(docs, total, page, filter.Limit()), nil
}

// Delete removes a draft document. Posted documents must be unposted first.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := doc.EnsureDeletable(); err != nil {
		s.logEvent(ctx, AuditEvent{
			Action:   "document.delete.failed",
			Message:  err.Error(),
			Severity: SeverityWarning,
			Context:  map[string]any{"document_id": id.String(), "number": doc.Number},
		})
		return err
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.logEvent(ctx, AuditEvent{
		Action:   "document.delete",
		Message:  fmt.Sprintf("document %s deleted", doc.Number),
		Severity: SeverityInfo,
		Context:  map[string]any{"document_id": id.String()},
	})
	return nil
}

func (s *DocumentService) logEvent(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit sink panicked", zap.String("action", event.Action), zap.Any("panic", r))
		}
	}()
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Warn("audit sink failed", zap.String("action", event.Action), zap.Error(err))
	}
}
