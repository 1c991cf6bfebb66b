package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

type exchangeFixture struct {
	svc       *ExchangeService
	store     *store.Store
	catalog   *fakeCatalog
	publisher *recordingPublisher
}

// setupExchangeFixture creates alice and bob as accepted contacts. Alice owns
// book 1, bob owns book 2.
func setupExchangeFixture(t *testing.T) *exchangeFixture {
	t.Helper()

	s := setupTestStore(t)
	cat := newFakeCatalog(
		testBook(1, "Lalka", "Prus, Bolesław", "Powieść", "polski", "1890"),
		testBook(2, "Quo vadis", "Sienkiewicz, Henryk", "Powieść", "polski", "1896"),
		testBook(3, "Ferdydurke", "Gombrowicz, Witold", "Powieść", "polski", "1937"),
	)
	pub := &recordingPublisher{}

	createTestUser(t, s, "alice", "Alice")
	createTestUser(t, s, "bob", "Bob")
	createTestUser(t, s, "carol", "Carol")
	createTestContact(t, s, "alice", "bob", domain.ContactAccepted)
	createTestOwnership(t, s, "alice", bookID(1))
	createTestOwnership(t, s, "bob", bookID(2))

	return &exchangeFixture{
		svc:       NewExchangeService(s, cat, pub, testLogger()),
		store:     s,
		catalog:   cat,
		publisher: pub,
	}
}

func (f *exchangeFixture) propose(t *testing.T) *domain.Exchange {
	t.Helper()
	ex, err := f.svc.Propose(context.Background(), "alice", ProposeRequest{
		RecipientID:  "bob",
		UserBooks:    []string{"1"},
		ContactBooks: []string{bookID(2)},
	})
	require.NoError(t, err)
	return ex
}

func TestExchangeService_Propose(t *testing.T) {
	f := setupExchangeFixture(t)

	ex := f.propose(t)
	assert.Equal(t, domain.ExchangePending, ex.Status)
	assert.Equal(t, []string{bookID(1)}, ex.UserBookIDs())
	assert.Equal(t, []string{bookID(2)}, ex.ContactBookIDs())

	book, ok := ex.UserBooks[0].Book()
	require.True(t, ok, "books are resolved when the exchange is written")
	assert.Equal(t, "Lalka", book.Title)

	stored, err := f.store.Exchanges.Get(context.Background(), ex.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefResolved, stored.ContactBooks[0].Kind())
	assert.Equal(t, []domain.ExchangeStatus{domain.ExchangePending}, f.publisher.exchanges)
}

func TestExchangeService_Propose_UnresolvedBookIsStoredByID(t *testing.T) {
	f := setupExchangeFixture(t)
	f.catalog.fail(bookID(2))

	ex := f.propose(t)
	assert.Equal(t, domain.RefUnresolved, ex.ContactBooks[0].Kind())
	assert.Equal(t, bookID(2), ex.ContactBooks[0].ID())
}

func TestExchangeService_Propose_Validation(t *testing.T) {
	f := setupExchangeFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		proposer string
		req      ProposeRequest
		want     error
	}{
		{"self", "alice", ProposeRequest{RecipientID: "alice", UserBooks: []string{bookID(1)}}, domainerrors.ErrValidation},
		{"no books", "alice", ProposeRequest{RecipientID: "bob"}, domainerrors.ErrValidation},
		{"missing recipient", "alice", ProposeRequest{UserBooks: []string{bookID(1)}}, domainerrors.ErrValidation},
		{"not a contact", "alice", ProposeRequest{RecipientID: "carol", UserBooks: []string{bookID(1)}}, domainerrors.ErrForbidden},
		{"proposer does not own", "alice", ProposeRequest{RecipientID: "bob", UserBooks: []string{bookID(3)}}, domainerrors.ErrValidation},
		{"recipient does not own", "alice", ProposeRequest{RecipientID: "bob", ContactBooks: []string{bookID(1)}}, domainerrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Propose(ctx, tt.proposer, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExchangeService_Propose_PendingContactIsNotEnough(t *testing.T) {
	f := setupExchangeFixture(t)
	createTestContact(t, f.store, "carol", "alice", domain.ContactPending)
	createTestOwnership(t, f.store, "carol", bookID(3))

	_, err := f.svc.Propose(context.Background(), "alice", ProposeRequest{
		RecipientID:  "carol",
		ContactBooks: []string{bookID(3)},
	})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestExchangeService_Propose_DuplicatePendingConflicts(t *testing.T) {
	f := setupExchangeFixture(t)
	f.propose(t)

	_, err := f.svc.Propose(context.Background(), "alice", ProposeRequest{
		RecipientID:  "bob",
		UserBooks:    []string{bookID(1)},
		ContactBooks: []string{"2"},
	})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	// A different book set is a different proposal.
	_, err = f.svc.Propose(context.Background(), "alice", ProposeRequest{
		RecipientID: "bob",
		UserBooks:   []string{bookID(1)},
	})
	assert.NoError(t, err)
}

func TestExchangeService_Accept_TransfersOwnership(t *testing.T) {
	f := setupExchangeFixture(t)
	ex := f.propose(t)

	result, err := f.svc.Accept(context.Background(), ex.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, result.Outcome)
	assert.Empty(t, result.Failures)
	assert.Equal(t, domain.ExchangeCompleted, result.Exchange.Status)
	require.NotNil(t, result.Exchange.StatusDate)

	// Each book has exactly one owner, the other party.
	assert.Equal(t, []string{"bob"}, owners(t, f.store, bookID(1)))
	assert.Equal(t, []string{"alice"}, owners(t, f.store, bookID(2)))
}

func TestExchangeService_Accept_OnlyRecipient(t *testing.T) {
	f := setupExchangeFixture(t)
	ex := f.propose(t)

	_, err := f.svc.Accept(context.Background(), ex.ID, "alice")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = f.svc.Accept(context.Background(), ex.ID, "carol")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	assert.Equal(t, []string{"alice"}, owners(t, f.store, bookID(1)))
}

func TestExchangeService_Accept_ReportsTransferFailures(t *testing.T) {
	f := setupExchangeFixture(t)
	ex := f.propose(t)

	// Bob gave his copy away after the proposal.
	err := f.store.Update(context.Background(), func(tx *store.Tx) error {
		own, err := f.store.OwnershipTx(tx, "bob", bookID(2))
		if err != nil {
			return err
		}
		return f.store.Ownership.DeleteTx(tx, own.ID)
	})
	require.NoError(t, err)

	result, err := f.svc.Accept(context.Background(), ex.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAcceptedWithTransferErrors, result.Outcome)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bookID(2), result.Failures[0].BookID)
	assert.Equal(t, "bob", result.Failures[0].From)

	assert.Equal(t, domain.ExchangeCompleted, result.Exchange.Status)
	assert.Equal(t, []string{"bob"}, owners(t, f.store, bookID(1)), "other transfers still happen")
}

func TestExchangeService_Accept_MergesWhenReceiverAlreadyOwns(t *testing.T) {
	f := setupExchangeFixture(t)
	createTestOwnership(t, f.store, "bob", bookID(1))
	ex := f.propose(t)

	_, err := f.svc.Accept(context.Background(), ex.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, owners(t, f.store, bookID(1)))
}

func TestExchangeService_TerminalStatesAreFinal(t *testing.T) {
	f := setupExchangeFixture(t)
	ctx := context.Background()
	ex := f.propose(t)

	_, err := f.svc.Accept(ctx, ex.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, ex.ID, "bob")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	_, err = f.svc.Decline(ctx, ex.ID, "bob")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	_, err = f.svc.Cancel(ctx, ex.ID, "alice")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	// Ownership did not move back.
	assert.Equal(t, []string{"bob"}, owners(t, f.store, bookID(1)))
}

func TestExchangeService_ConcurrentAcceptTransfersOnce(t *testing.T) {
	f := setupExchangeFixture(t)
	ex := f.propose(t)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(context.Background(), ex.ID, "bob")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"bob"}, owners(t, f.store, bookID(1)))
	assert.Equal(t, []string{"alice"}, owners(t, f.store, bookID(2)))
}

func TestExchangeService_DeclineAndCancelAreDistinct(t *testing.T) {
	f := setupExchangeFixture(t)
	ctx := context.Background()

	declined := f.propose(t)
	got, err := f.svc.Decline(ctx, declined.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeDeclined, got.Status)

	cancelled := f.propose(t)
	_, err = f.svc.Cancel(ctx, cancelled.ID, "bob")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden, "only the proposer cancels")

	got, err = f.svc.Cancel(ctx, cancelled.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeCancelled, got.Status)

	// Neither moves ownership.
	assert.Equal(t, []string{"alice"}, owners(t, f.store, bookID(1)))
}

func TestExchangeService_List(t *testing.T) {
	f := setupExchangeFixture(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	f.svc.now = func() time.Time { return clock }

	first := f.propose(t)
	clock = base.Add(time.Hour)
	_, err := f.svc.Decline(ctx, first.ID, "bob")
	require.NoError(t, err)

	clock = base.Add(2 * time.Hour)
	second := f.propose(t)
	clock = base.Add(3 * time.Hour)
	_, err = f.svc.Cancel(ctx, second.ID, "alice")
	require.NoError(t, err)

	clock = base.Add(4 * time.Hour)
	pending := f.propose(t)

	incoming, err := f.svc.List(ctx, "bob", RoleIncoming)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, pending.ID, incoming[0].ID)
	assert.Equal(t, "Alice", incoming[0].Counterparty.DisplayName)
	assert.Equal(t, "Lalka", incoming[0].UserBooks[0].Title)

	outgoing, err := f.svc.List(ctx, "bob", RoleOutgoing)
	require.NoError(t, err)
	assert.Empty(t, outgoing)

	history, err := f.svc.List(ctx, "alice", RoleHistory)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID, "most recent status change first")
	assert.Equal(t, domain.ExchangeCancelled, history[0].Status)
	assert.Equal(t, domain.ExchangeDeclined, history[1].Status)

	_, err = f.svc.List(ctx, "alice", "archived")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestExchangeService_List_PlaceholderForUnavailableBooks(t *testing.T) {
	f := setupExchangeFixture(t)
	f.catalog.fail(bookID(2))
	f.propose(t)

	views, err := f.svc.List(context.Background(), "alice", RoleOutgoing)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.PlaceholderTitle, views[0].ContactBooks[0].Title)
	assert.Equal(t, bookID(2), string(views[0].ContactBooks[0].ID))
}

func TestExchangeService_ProfilesLogsStoreFailure(t *testing.T) {
	f := setupExchangeFixture(t)
	var logs bytes.Buffer
	svc := NewExchangeService(f.store, f.catalog, f.publisher, slog.New(slog.NewTextHandler(&logs, nil)))

	ctx := context.Background()
	profiles := svc.profiles(ctx, map[string]struct{}{"bob": {}, "ghost": {}})
	assert.Equal(t, "Bob", profiles["bob"].DisplayName)
	assert.Equal(t, "ghost", profiles["ghost"].UID)
	assert.Empty(t, logs.String(), "a missing user is not a failure")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	profiles = svc.profiles(cancelled, map[string]struct{}{"bob": {}})
	assert.Equal(t, "bob", profiles["bob"].UID)
	assert.Empty(t, profiles["bob"].DisplayName)
	assert.Contains(t, logs.String(), "failed to load counterparties")
	assert.Contains(t, logs.String(), "level=WARN")
}
