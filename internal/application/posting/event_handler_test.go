package posting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) DocumentPosted(ctx context.Context, event *document.DocumentPostedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockNotifier) DocumentUnposted(ctx context.Context, event *document.DocumentUnpostedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newDraft(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.NewDocument(document.TypeSale, "SAL-000007", document.Header{
		CompanyID:   uuid.New(),
		FirmID:      uuid.New(),
		WarehouseID: uuid.New(),
	}, time.Now())
	require.NoError(t, err)
	return doc
}

func TestDocumentEventHandler_ForwardsToNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := new(mockNotifier)
	h := posting.NewDocumentEventHandler(zap.New(core)).WithNotifier(notifier)
	assert.ElementsMatch(t, []string{document.EventTypeDocumentPosted, document.EventTypeDocumentUnposted}, h.EventTypes())

	doc := newDraft(t)
	posted := document.NewDocumentPostedEvent(doc)
	unposted := document.NewDocumentUnpostedEvent(doc)
	notifier.On("DocumentPosted", mock.Anything, posted).Return(nil)
	notifier.On("DocumentUnposted", mock.Anything, unposted).Return(errors.New("ledger export down"))

	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, posted))
	assert.EqualError(t, h.Handle(ctx, unposted), "ledger export down")
	notifier.AssertExpectations(t)

	entries := logs.FilterField(zap.String("number", "SAL-000007")).All()
	assert.Len(t, entries, 2)
}

type otherEvent struct {
	shared.BaseDomainEvent
}

func TestDocumentEventHandler_RejectsForeignEvents(t *testing.T) {
	h := posting.NewDocumentEventHandler(nil)
	ev := &otherEvent{BaseDomainEvent: shared.NewBaseDomainEvent("Something", "thing", uuid.New(), uuid.New())}
	assert.Error(t, h.Handle(context.Background(), ev))
}
