package posting_test

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/application/posting"
	"github.com/erp/ledger/internal/domain/document"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/numbering"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The tests below replay interleavings that need two database sessions.
// sqlite runs every transaction on one connection, so the competing write
// is made inside the transaction under test, at the moment a lock would
// have been granted to it.

// hookScope hands out repositories whose lock calls can run a hook first.
type hookScope struct {
	inner    posting.TransactionScope
	onLock   func(ctx context.Context, repos posting.TransactionalRepositories, key ledger.StockKey) error
	onSource func(ctx context.Context, repos posting.TransactionalRepositories, id uuid.UUID) error
}

func (s *hookScope) Execute(ctx context.Context, fn func(repos posting.TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos posting.TransactionalRepositories) error {
		return fn(&hookRepos{inner: repos, scope: s})
	})
}

type hookRepos struct {
	inner posting.TransactionalRepositories
	scope *hookScope
}

func (r *hookRepos) Documents() document.Repository {
	return &hookDocuments{Repository: r.inner.Documents(), repos: r}
}

func (r *hookRepos) Operations() ledger.OperationRepository {
	return &hookOperations{OperationRepository: r.inner.Operations(), repos: r}
}

type hookDocuments struct {
	document.Repository
	repos *hookRepos
}

func (d *hookDocuments) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	if hook := d.repos.scope.onSource; hook != nil {
		if err := hook(ctx, d.repos.inner, id); err != nil {
			return nil, err
		}
	}
	return d.Repository.FindByIDForUpdate(ctx, id)
}

type hookOperations struct {
	ledger.OperationRepository
	repos *hookRepos
}

func (o *hookOperations) LockLots(ctx context.Context, key ledger.StockKey) ([]ledger.Operation, error) {
	if hook := o.repos.scope.onLock; hook != nil {
		if err := hook(ctx, o.repos.inner, key); err != nil {
			return nil, err
		}
	}
	return o.OperationRepository.LockLots(ctx, key)
}

func TestUnpost_SeesSaleCommittedWhileWaitingForLots(t *testing.T) {
	scope := &hookScope{}
	env := newTestEnvWithScope(t, func(inner posting.TransactionScope) posting.TransactionScope {
		scope.inner = inner
		return scope
	})
	ctx := context.Background()

	env.receive(t, env.flour, "2", "10")
	r1 := env.receive(t, env.flour, "10", "10")
	env.receive(t, env.flour, "100", "10")
	sale := env.create(t, env.input(document.TypeSale, line(env.flour, "3", ptr("20"))))

	lots, err := env.engine.OpenLots(ctx, env.key(env.flour, env.main))
	require.NoError(t, err)
	var r1Lot *ledger.Operation
	for i := range lots {
		if lots[i].Operation.DocumentID == r1.ID {
			r1Lot = &lots[i].Operation
		}
	}
	require.NotNil(t, r1Lot)

	// a sale drawing three units from r1 commits just as the unpost gets the lots
	fired := false
	scope.onLock = func(ctx context.Context, repos posting.TransactionalRepositories, _ ledger.StockKey) error {
		if fired {
			return nil
		}
		fired = true
		owner := ledger.Owner{DocumentID: sale.ID, CompanyID: env.company, FirmID: env.firm}
		out, err := ledger.NewConsumption(owner, r1Lot, dec("3"), ptr("20"), r1Lot.CreatedAt)
		if err != nil {
			return err
		}
		return repos.Operations().Create(ctx, out)
	}

	_, err = env.service.Unpost(ctx, r1.ID)
	require.True(t, fired)
	assert.ErrorIs(t, err, shared.ErrLotInUse)
	assert.Equal(t, document.StatusPosted, env.status(t, r1.ID))

	var orphans int64
	require.NoError(t, env.db.DB.Raw(`SELECT COUNT(*) FROM ledger_operations o
		WHERE o.source_operation_id IS NOT NULL
		AND NOT EXISTS (SELECT 1 FROM ledger_operations l WHERE l.id = o.source_operation_id)`).
		Scan(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestPost_ReturnSeesReturnPostedWhileWaitingForSource(t *testing.T) {
	scope := &hookScope{}
	env := newTestEnvWithScope(t, func(inner posting.TransactionScope) posting.TransactionScope {
		scope.inner = inner
		return scope
	})
	ctx := context.Background()

	receipt := env.receive(t, env.flour, "10", "10")
	newReturn := func() *document.Document {
		in := env.input(document.TypeReturnToSupplier, line(env.flour, "6", nil))
		in.SourceDocumentID = &receipt.ID
		return env.create(t, in)
	}
	first := newReturn()
	second := newReturn()

	// the other return commits while this one waits on the receipt header
	fired := false
	scope.onSource = func(ctx context.Context, repos posting.TransactionalRepositories, id uuid.UUID) error {
		if fired || id != receipt.ID {
			return nil
		}
		fired = true
		other, err := repos.Documents().FindByID(ctx, second.ID)
		if err != nil {
			return err
		}
		if err := other.MarkPosted(other.CreatedAt); err != nil {
			return err
		}
		return repos.Documents().UpdateStatus(ctx, other)
	}

	_, err := env.service.Post(ctx, first.ID)
	require.True(t, fired)
	assert.ErrorIs(t, err, shared.ErrInvalidReturnQuantity)
	assert.Equal(t, document.StatusDraft, env.status(t, first.ID))
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}

// postingDocuments posts the document from another session right before
// the delete reaches the database.
type postingDocuments struct {
	document.Repository
	post func(id uuid.UUID) error
}

func (d *postingDocuments) Delete(ctx context.Context, id uuid.UUID) error {
	if err := d.post(id); err != nil {
		return err
	}
	return d.Repository.Delete(ctx, id)
}

func TestDocumentService_DeleteLosesToConcurrentPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := env.create(t, env.input(document.TypeReceipt, line(env.flour, "10", ptr("10"))))

	products := persistence.NewGormProductRepository(env.db.DB)
	deleter := posting.NewDocumentService(
		&postingDocuments{Repository: env.docRepo, post: func(id uuid.UUID) error {
			_, err := env.service.Post(ctx, id)
			return err
		}},
		products,
		numbering.NewSQLSequence(env.db.DB, numbering.NewFormat(nil, 0)),
		nil,
	)

	err := deleter.Delete(ctx, draft.ID)
	assert.ErrorIs(t, err, shared.ErrDocumentAlreadyPosted)

	doc, err := env.documents.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, doc.IsPosted())
	assert.Len(t, doc.Lines, 1)
	assert.True(t, env.stock(t, env.flour, env.main).Equal(dec("10")))
}
