// Package posting turns draft documents into ledger operations and back.
package posting

import (
	"context"

	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/masterdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitConverter converts an entered quantity into the product's base unit.
// Results are trusted as-is.
type UnitConverter interface {
	ConvertToBase(ctx context.Context, productID uuid.UUID, unit string, quantity decimal.Decimal) (decimal.Decimal, error)
}

// VATRateProvider returns the default VAT percent for a company. It must
// fall back to a constant when the company has nothing configured.
type VATRateProvider interface {
	DefaultVATRate(ctx context.Context, companyID uuid.UUID) (decimal.Decimal, error)
}

// NumberGenerator hands out document numbers, monotonically per type and
// never reused.
type NumberGenerator interface {
	Next(ctx context.Context, docType document.Type) (string, error)
}

// PriceLookup resolves a list price for a product sold by a firm
type PriceLookup interface {
	GetPrice(ctx context.Context, productID, firmID uuid.UUID, kind masterdata.PriceKind) (decimal.Decimal, error)
}

// Severity of an audit event
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AuditEvent is a single entry sent to the audit sink
type AuditEvent struct {
	Action   string
	Message  string
	Severity Severity
	Context  map[string]any
}

// AuditSink receives state transitions and validation failures. Callers
// never depend on its result.
type AuditSink interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}
