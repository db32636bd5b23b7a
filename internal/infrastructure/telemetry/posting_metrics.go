package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when posting metrics are created without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Posting actions.
const (
	PostingActionPost   = "post"
	PostingActionUnpost = "unpost"
)

// Posting outcomes. Rejected covers domain errors such as insufficient stock;
// Error covers infrastructure failures.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// PostingMetrics counts post/unpost attempts and ledger rows they touch.
// A nil *PostingMetrics is valid and records nothing.
type PostingMetrics struct {
	attempts   *Counter
	operations *Counter
	duration   *Histogram
}

// NewPostingMetrics registers the posting instruments on meter.
func NewPostingMetrics(meter metric.Meter) (*PostingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	attempts, err := NewCounter(meter, "ledger.posting.attempts", "Number of post and unpost attempts", "{attempt}")
	if err != nil {
		return nil, err
	}
	operations, err := NewCounter(meter, "ledger.posting.operations", "Ledger operations written or removed", "{operation}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "ledger.posting.duration",
		Description: "Duration of post and unpost calls",
		Unit:        "s",
		Boundaries:  PostingDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &PostingMetrics{attempts: attempts, operations: operations, duration: duration}, nil
}

// RecordPosting records one attempt.
func (m *PostingMetrics) RecordPosting(ctx context.Context, action, docType, outcome string, d time.Duration, ops int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrAction.String(action),
		AttrDocumentType.String(docType),
		AttrOutcome.String(outcome),
	}
	m.attempts.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, d, attrs...)
	if ops > 0 {
		m.operations.Add(ctx, int64(ops), attrs[:2]...)
	}
}
