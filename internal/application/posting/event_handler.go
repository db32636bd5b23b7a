package posting

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// DownstreamNotifier is told about posting transitions, e.g. to regenerate
// accounting entries from the document's ledger rows.
type DownstreamNotifier interface {
	DocumentPosted(ctx context.Context, event *document.DocumentPostedEvent) error
	DocumentUnposted(ctx context.Context, event *document.DocumentUnpostedEvent) error
}

// DocumentEventHandler forwards document events from the event bus
type DocumentEventHandler struct {
	logger   *zap.Logger
	notifier DownstreamNotifier
}

// NewDocumentEventHandler creates a handler for posted/unposted events
func NewDocumentEventHandler(logger *zap.Logger) *DocumentEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentEventHandler{logger: logger}
}

// WithNotifier sets the downstream notifier
func (h *DocumentEventHandler) WithNotifier(notifier DownstreamNotifier) *DocumentEventHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *DocumentEventHandler) EventTypes() []string {
	return []string{document.EventTypeDocumentPosted, document.EventTypeDocumentUnposted}
}

// Handle processes a document event
func (h *DocumentEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *document.DocumentPostedEvent:
		h.logger.Info("ledger updated by posting",
			zap.String("company_id", e.CompanyID().String()),
			zap.String("document_id", e.DocumentID.String()),
			zap.String("number", e.Number),
			zap.String("type", e.DocumentType.String()),
		)
		if h.notifier != nil {
			return h.notifier.DocumentPosted(ctx, e)
		}
	case *document.DocumentUnpostedEvent:
		h.logger.Info("ledger rows removed by unposting",
			zap.String("company_id", e.CompanyID().String()),
			zap.String("document_id", e.DocumentID.String()),
			zap.String("number", e.Number),
			zap.String("type", e.DocumentType.String()),
		)
		if h.notifier != nil {
			return h.notifier.DocumentUnposted(ctx, e)
		}
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return nil
}
