package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/application/stock"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service drives the draft ⇄ posted state machine. Each Post and Unpost is
// one unit of work: either every ledger row and the status flip commit, or
// nothing does.
type Service struct {
	scope     TransactionScope
	documents document.Repository
	firms     masterdata.FirmRepository
	products  masterdata.ProductRepository
	converter UnitConverter
	vatRates  VATRateProvider
	engine    *stock.Engine
	validator *Validator
	handlers  map[document.Type]Handler

	audit     AuditSink
	publisher shared.EventPublisher
	metrics   *telemetry.PostingMetrics
	logger    *zap.Logger
	clock     func() time.Time
}

// NewService creates a posting service with the default handler table
func NewService(
	scope TransactionScope,
	documents document.Repository,
	firms masterdata.FirmRepository,
	products masterdata.ProductRepository,
	converter UnitConverter,
	vatRates VATRateProvider,
	engine *stock.Engine,
) *Service {
	return &Service{
		scope:     scope,
		documents: documents,
		firms:     firms,
		products:  products,
		converter: converter,
		vatRates:  vatRates,
		engine:    engine,
		validator: NewValidator(),
		handlers:  DefaultHandlers(),
		logger:    zap.NewNop(),
		clock:     engine.Now,
	}
}

// SetEventPublisher sets the publisher used for posted/unposted events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetAuditSink sets the audit sink
func (s *Service) SetAuditSink(sink AuditSink) {
	s.audit = sink
}

// SetMetrics sets the posting metrics recorder
func (s *Service) SetMetrics(metrics *telemetry.PostingMetrics) {
	s.metrics = metrics
}

// SetLogger sets the service logger
func (s *Service) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// RegisterHandler replaces the handler of a document type
func (s *Service) RegisterHandler(docType document.Type, handler Handler) {
	s.handlers[docType] = handler
}

// prepared holds everything computed outside the transaction: collaborator
// lookups are done before any row is locked.
type prepared struct {
	version  int
	firm     *masterdata.Firm
	products map[uuid.UUID]*masterdata.Product
	lines    map[uuid.UUID]lineCalc
}

type lineCalc struct {
	converted decimal.Decimal
	vat       tax.Result
}

// Post moves a draft document to posted and writes its ledger rows.
func (s *Service) Post(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "post",
		telemetry.WithAttribute(telemetry.SpanAttrDocumentID, documentID.String()))
	defer span.End()
	started := time.Now()

	result := newResult(documentID)
	var doc *document.Document

	pre, err := s.prepare(ctx, documentID)
	if err == nil {
		err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			d, err := repos.Documents().FindByIDForUpdate(ctx, documentID)
			if err != nil {
				return err
			}
			doc = d
			if d.IsPosted() {
				return shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted, "document %s is already posted", d.Number)
			}
			if d.GetVersion() != pre.version {
				return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "document %s changed while it was being posted", d.Number)
			}
			if err := d.ValidateStructure(); err != nil {
				return err
			}
			if err := pre.apply(d); err != nil {
				return err
			}

			handler, ok := s.handlers[d.Type]
			if !ok {
				return shared.NewDomainErrorf(shared.CodeInvalidInput, "no posting handler for document type %s", d.Type)
			}
			job := &Job{
				Doc:      d,
				Firm:     pre.firm,
				Products: pre.products,
				Repos:    repos,
				Engine:   s.engine.WithRepository(repos.Operations()),
				Now:      s.clock().UTC(),
				result:   result,
			}
			if err := s.validator.BeforePost(ctx, job); err != nil {
				return err
			}
			if err := handler.Post(ctx, job); err != nil {
				return err
			}
			if err := d.MarkPosted(job.Now); err != nil {
				return err
			}
			return repos.Documents().UpdateStatus(ctx, d)
		})
	}

	docType := ""
	if doc != nil {
		docType = doc.Type.String()
		result.Number = doc.Number
		result.Type = doc.Type
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordPosting(ctx, telemetry.PostingActionPost, docType, outcome(err), time.Since(started), 0)
		s.reportFailure(ctx, "document.post", documentID, doc, err)
		return nil, err
	}

	result.Status = doc.Status
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentType, docType,
		telemetry.SpanAttrOperations, result.OperationsWritten,
	)
	s.metrics.RecordPosting(ctx, telemetry.PostingActionPost, docType, telemetry.OutcomeSuccess, time.Since(started), result.OperationsWritten)
	s.logger.Info("document posted",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("type", docType),
		zap.Int("operations", result.OperationsWritten),
		zap.String("total_cost", result.TotalCost.String()),
	)
	s.logEvent(ctx, AuditEvent{
		Action:   "document.post",
		Message:  fmt.Sprintf("document %s posted", doc.Number),
		Severity: SeverityInfo,
		Context: map[string]any{
			"document_id": doc.ID.String(),
			"type":        docType,
			"operations":  result.OperationsWritten,
			"total_cost":  result.TotalCost.String(),
		},
	})
	s.publishEvents(ctx, doc)
	return result, nil
}

// Unpost returns a posted document to draft and hard-deletes its ledger rows,
// provided nothing downstream depends on them.
func (s *Service) Unpost(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "unpost",
		telemetry.WithAttribute(telemetry.SpanAttrDocumentID, documentID.String()))
	defer span.End()
	started := time.Now()

	result := newResult(documentID)
	var doc *document.Document

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		d, err := repos.Documents().FindByIDForUpdate(ctx, documentID)
		if err != nil {
			return err
		}
		doc = d
		if !d.IsPosted() {
			return shared.NewDomainErrorf(shared.CodeDocumentNotPosted, "document %s is not posted", d.Number)
		}
		owned, err := repos.Operations().FindByDocument(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("load document rows: %w", err)
		}
		job := &Job{
			Doc:    d,
			Repos:  repos,
			Engine: s.engine.WithRepository(repos.Operations()),
			Now:    s.clock().UTC(),
			Owned:  owned,
			result: result,
		}
		if err := s.validator.BeforeUnpost(ctx, job); err != nil {
			return err
		}
		deleted, err := repos.Operations().DeleteByDocument(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("delete document rows: %w", err)
		}
		result.OperationsDeleted = deleted
		if err := d.MarkUnposted(job.Now); err != nil {
			return err
		}
		return repos.Documents().UpdateStatus(ctx, d)
	})

	docType := ""
	if doc != nil {
		docType = doc.Type.String()
		result.Number = doc.Number
		result.Type = doc.Type
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordPosting(ctx, telemetry.PostingActionUnpost, docType, outcome(err), time.Since(started), 0)
		s.reportFailure(ctx, "document.unpost", documentID, doc, err)
		return nil, err
	}

	result.Status = doc.Status
	s.metrics.RecordPosting(ctx, telemetry.PostingActionUnpost, docType, telemetry.OutcomeSuccess, time.Since(started), int(result.OperationsDeleted))
	s.logger.Info("document unposted",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.Number),
		zap.String("type", docType),
		zap.Int64("operations_deleted", result.OperationsDeleted),
	)
	s.logEvent(ctx, AuditEvent{
		Action:   "document.unpost",
		Message:  fmt.Sprintf("document %s unposted", doc.Number),
		Severity: SeverityInfo,
		Context: map[string]any{
			"document_id":        doc.ID.String(),
			"type":               docType,
			"operations_deleted": result.OperationsDeleted,
		},
	})
	s.publishEvents(ctx, doc)
	return result, nil
}

// prepare resolves firm, products, unit conversion and VAT for every line.
func (s *Service) prepare(ctx context.Context, documentID uuid.UUID) (*prepared, error) {
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsPosted() {
		return nil, shared.NewDomainErrorf(shared.CodeDocumentAlreadyPosted, "document %s is already posted", doc.Number)
	}

	firm, err := s.firms.FindByID(ctx, doc.FirmID)
	if err != nil {
		return nil, fmt.Errorf("load firm %s: %w", doc.FirmID, err)
	}

	ids := make([]uuid.UUID, 0, len(doc.Lines))
	for i := range doc.Lines {
		ids = append(ids, doc.Lines[i].ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	defaultRate := tax.FallbackRate
	if firm.Regime == tax.RegimeTaxed {
		if defaultRate, err = s.vatRates.DefaultVATRate(ctx, doc.CompanyID); err != nil {
			return nil, fmt.Errorf("resolve default VAT rate: %w", err)
		}
	}

	pre := &prepared{
		version:  doc.GetVersion(),
		firm:     firm,
		products: products,
		lines:    make(map[uuid.UUID]lineCalc, len(doc.Lines)),
	}
	for i := range doc.Lines {
		line := &doc.Lines[i]
		product, ok := products[line.ProductID]
		if !ok {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "line %d references unknown product %s", line.LineNo, line.ProductID)
		}
		if !product.Type.IsStocked() {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "line %d: %s is a service and does not move stock", line.LineNo, product.Name)
		}

		converted, err := s.converter.ConvertToBase(ctx, line.ProductID, line.Unit, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("convert line %d quantity: %w", line.LineNo, err)
		}
		if doc.Type != document.TypeInventory && !converted.IsPositive() {
			return nil, shared.NewDomainErrorf(shared.CodeInvalidInput, "line %d converts to a non-positive base quantity", line.LineNo)
		}

		vat, err := tax.ApplyVAT(firm.Regime, line.UnitPrice, line.VATPercent, defaultRate, doc.VATMode)
		if err != nil {
			return nil, err
		}
		pre.lines[line.ID] = lineCalc{converted: converted, vat: vat}
	}
	return pre, nil
}

func (p *prepared) apply(doc *document.Document) error {
	for i := range doc.Lines {
		line := &doc.Lines[i]
		calc, ok := p.lines[line.ID]
		if !ok {
			return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "line %d of %s changed while it was being posted", line.LineNo, doc.Number)
		}
		if err := line.ApplyConversion(calc.converted); err != nil {
			return err
		}
		line.ApplyVAT(calc.vat)
	}
	return nil
}

func (s *Service) reportFailure(ctx context.Context, action string, documentID uuid.UUID, doc *document.Document, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("document_id", documentID.String()),
		zap.Error(err),
	}
	auditCtx := map[string]any{"document_id": documentID.String()}
	if doc != nil {
		fields = append(fields, zap.String("number", doc.Number), zap.String("type", doc.Type.String()))
		auditCtx["number"] = doc.Number
		auditCtx["type"] = doc.Type.String()
	}

	severity := SeverityError
	var de *shared.DomainError
	if errors.As(err, &de) {
		severity = SeverityWarning
		auditCtx["code"] = de.Code
		for k, v := range de.Details {
			auditCtx[k] = v
		}
		fields = append(fields, zap.String("code", de.Code), zap.Any("details", de.Details))
		s.logger.Warn("document transition rejected", fields...)
	} else {
		s.logger.Error("document transition failed", fields...)
	}

	s.logEvent(ctx, AuditEvent{
		Action:   action + ".failed",
		Message:  err.Error(),
		Severity: severity,
		Context:  auditCtx,
	})
}

// logEvent hands an entry to the audit sink. Sink errors and panics are
// logged and dropped.
func (s *Service) logEvent(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("audit sink panicked",
				zap.String("action", event.Action),
				zap.Any("panic", r),
			)
		}
	}()
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Warn("audit sink failed",
			zap.String("action", event.Action),
			zap.Error(err),
		)
	}
}

func (s *Service) publishEvents(ctx context.Context, doc *document.Document) {
	events := doc.GetDomainEvents()
	doc.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish document events",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}
}

func newResult(documentID uuid.UUID) *Result {
	return &Result{
		DocumentID:   documentID,
		TotalCost:    decimal.Zero,
		TotalRevenue: decimal.Zero,
	}
}

func outcome(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return telemetry.OutcomeRejected
	}
	return telemetry.OutcomeError
}
