package posting_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_NumbersPerType(t *testing.T) {
	env := newTestEnv(t)

	r1 := env.create(t, env.input(document.TypeReceipt, line(env.flour, "1", ptr("1"))))
	r2 := env.create(t, env.input(document.TypeReceipt, line(env.flour, "1", ptr("1"))))
	s1 := env.create(t, env.input(document.TypeSale, line(env.flour, "1", ptr("1"))))

	assert.Equal(t, "RECEIPT-000001", r1.Number)
	assert.Equal(t, "RECEIPT-000002", r2.Number)
	assert.Equal(t, "SALE-000001", s1.Number)
	assert.Equal(t, document.StatusDraft, s1.Status)
	assert.Equal(t, tax.ModeFromGross, s1.VATMode)
}

func TestDocumentService_FillsLineDefaults(t *testing.T) {
	env := newTestEnv(t)

	sale := env.create(t, env.input(document.TypeSale,
		line(env.bread, "2", nil),
		line(env.flour, "1", nil),
	))
	require.Len(t, sale.Lines, 2)
	assert.True(t, sale.Lines[0].UnitPrice.Equal(dec("3.5")), "retail price %s", sale.Lines[0].UnitPrice)
	assert.Equal(t, "pcs", sale.Lines[0].Unit)
	// no list price for flour
	assert.True(t, sale.Lines[1].UnitPrice.IsZero())
	assert.Equal(t, "kg", sale.Lines[1].Unit)
}

func TestDocumentService_CreateRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   posting.CreateDocumentInput
		want error
	}{
		{"no lines", env.input(document.TypeReceipt), shared.ErrInvalidInput},
		{"unknown type", env.input(document.Type("gift"), line(env.flour, "1", nil)), shared.ErrInvalidInput},
		{"unknown product", env.input(document.TypeReceipt, line(uuid.New(), "1", nil)), shared.ErrInvalidInput},
		{"zero quantity", env.input(document.TypeReceipt, line(env.flour, "0", nil)), shared.ErrInvalidInput},
		{"return without source", env.input(document.TypeReturnToSupplier, line(env.flour, "1", nil)), shared.ErrMissingSourceDocument},
		{"transfer without target", env.input(document.TypeTransfer, line(env.flour, "1", nil)), shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.documents.Create(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("bad vat mode", func(t *testing.T) {
		in := env.input(document.TypeReceipt, line(env.flour, "1", nil))
		in.VATMode = tax.Mode("sideways")
		_, err := env.documents.Create(ctx, in)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("source of the wrong type", func(t *testing.T) {
		sale := env.create(t, env.input(document.TypeSale, line(env.flour, "1", ptr("1"))))
		in := env.input(document.TypeReturnToSupplier, line(env.flour, "1", nil))
		in.SourceDocumentID = &sale.ID
		_, err := env.documents.Create(ctx, in)
		assert.True(t, errors.Is(err, shared.ErrMissingSourceDocument))
	})

	t.Run("missing source", func(t *testing.T) {
		missing := uuid.New()
		in := env.input(document.TypeReturnFromClient, line(env.flour, "1", nil))
		in.SourceDocumentID = &missing
		_, err := env.documents.Create(ctx, in)
		assert.True(t, errors.Is(err, shared.ErrMissingSourceDocument))
	})
}

func TestDocumentService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	posted := env.receive(t, env.flour, "1", "1")
	err := env.documents.Delete(ctx, posted.ID)
	assert.True(t, errors.Is(err, shared.ErrDocumentAlreadyPosted))

	draft := env.create(t, env.input(document.TypeReceipt, line(env.flour, "1", ptr("1"))))
	require.NoError(t, env.documents.Delete(ctx, draft.ID))
	_, err = env.documents.Get(ctx, draft.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestDocumentService_List(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.receive(t, env.flour, "1", "1")
	env.create(t, env.input(document.TypeReceipt, line(env.flour, "1", ptr("1"))))
	env.create(t, env.input(document.TypeSale, line(env.flour, "1", ptr("1"))))

	receipt := document.TypeReceipt
	page, err := env.documents.List(ctx, document.Filter{Type: &receipt})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)

	posted := document.StatusPosted
	page, err = env.documents.List(ctx, document.Filter{Status: &posted})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "RECEIPT-000001", page.Items[0].Number)

	page, err = env.documents.List(ctx, document.Filter{Filter: shared.Filter{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)
}
