package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func review(id, userID, bookID string, rating int, at time.Time) *domain.Review {
	return &domain.Review{ID: id, UserID: userID, BookID: bookID, Rating: rating, CreatedAt: at}
}

const (
	bookA = "00000000000001"
	bookB = "00000000000002"
)

func TestCollection_InsertAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	r := review("rev-1", "alice", bookA, 8, time.Now())
	require.NoError(t, s.Reviews.Insert(ctx, r))

	got, err := s.Reviews.Get(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Rating)

	_, err = s.Reviews.Get(ctx, "rev-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCollection_InsertRejectsDuplicates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Reviews.Insert(ctx, review("rev-1", "alice", bookA, 8, time.Now())))

	err := s.Reviews.Insert(ctx, review("rev-1", "bob", bookB, 5, time.Now()))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	// Same user and book under a new id violates the unique index.
	err = s.Reviews.Insert(ctx, review("rev-2", "alice", bookA, 3, time.Now()))
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCollection_InsertValidates(t *testing.T) {
	s := setupTestStore(t)

	err := s.Reviews.Insert(context.Background(), review("rev-1", "alice", "12", 8, time.Now()))
	require.Error(t, err)

	_, getErr := s.Reviews.Get(context.Background(), "rev-1")
	assert.ErrorIs(t, getErr, store.ErrNotFound)
}

func TestCollection_FindByIndex(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Reviews.Insert(ctx, review("rev-1", "alice", bookA, 8, base)))
	require.NoError(t, s.Reviews.Insert(ctx, review("rev-2", "bob", bookA, 6, base.Add(time.Hour))))
	require.NoError(t, s.Reviews.Insert(ctx, review("rev-3", "alice", bookB, 9, base.Add(2*time.Hour))))

	forBook, err := s.ReviewsForBook(ctx, bookA)
	require.NoError(t, err)
	require.Len(t, forBook, 2)
	assert.Equal(t, "rev-2", forBook[0].ID, "newest first")

	byUser, err := s.ReviewsByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	none, err := s.ReviewsForBook(ctx, "00000000000099")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollection_IndexValuesWithSeparators(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Reviews.Insert(ctx, review("rev-1", "a", bookA, 8, time.Now())))
	require.NoError(t, s.Reviews.Insert(ctx, review("rev-2", "a:b", bookA, 8, time.Now())))

	got, err := s.ReviewsByUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rev-1", got[0].ID)
}

func TestCollection_ReplaceMovesIndexes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	own := &domain.BookOwnership{ID: "own-1", UserID: "alice", BookID: bookA, CreatedAt: time.Now()}
	require.NoError(t, s.Ownership.Insert(ctx, own))

	own.TransferTo("bob", time.Now())
	require.NoError(t, s.Ownership.Replace(ctx, own))

	err := s.View(ctx, func(tx *store.Tx) error {
		_, err := s.OwnershipTx(tx, "alice", bookA)
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.OwnershipTx(tx, "bob", bookA)
		require.NoError(t, err)
		assert.Equal(t, "own-1", got.ID)
		return nil
	})
	require.NoError(t, err)

	aliceBooks, err := s.Ownership.Find(ctx, "user", "alice")
	require.NoError(t, err)
	assert.Empty(t, aliceBooks)
}

func TestCollection_DeleteIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Reviews.Insert(ctx, review("rev-1", "alice", bookA, 8, time.Now())))
	require.NoError(t, s.Reviews.Delete(ctx, "rev-1"))
	require.NoError(t, s.Reviews.Delete(ctx, "rev-1"))

	byUser, err := s.ReviewsByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, byUser)

	// The unique slot is free again.
	require.NoError(t, s.Reviews.Insert(ctx, review("rev-2", "alice", bookA, 4, time.Now())))
}

func TestCollection_MutateAbortsOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Reviews.Insert(ctx, review("rev-1", "alice", bookA, 8, time.Now())))

	boom := errors.New("boom")
	_, err := s.Reviews.Mutate(ctx, "rev-1", func(r *domain.Review) error {
		r.Comment = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Reviews.Get(ctx, "rev-1")
	require.NoError(t, err)
	assert.Empty(t, got.Comment)
}

func TestUpdate_RollsBackEveryWrite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *store.Tx) error {
		require.NoError(t, s.Reviews.InsertTx(tx, review("rev-1", "alice", bookA, 8, time.Now())))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = s.Reviews.Get(ctx, "rev-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdate_ReadsOwnWrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *store.Tx) error {
		require.NoError(t, s.Reviews.InsertTx(tx, review("rev-1", "alice", bookA, 8, time.Now())))
		found, err := s.Reviews.FindTx(tx, "user", "alice")
		require.NoError(t, err)
		assert.Len(t, found, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestContactsOf_BothDirections(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	edges := []*domain.UserContact{
		{ID: "con-1", UserID: "alice", ContactID: "bob", Status: domain.ContactAccepted, CreatedAt: time.Now()},
		{ID: "con-2", UserID: "carol", ContactID: "alice", Status: domain.ContactPending, CreatedAt: time.Now()},
		{ID: "con-3", UserID: "bob", ContactID: "carol", Status: domain.ContactAccepted, CreatedAt: time.Now()},
	}
	for _, e := range edges {
		require.NoError(t, s.Contacts.Insert(ctx, e))
	}

	got, err := s.ContactsOf(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "con-1", got[0].ID)
	assert.Equal(t, "con-2", got[1].ID)

	// A reverse edge for an existing pair is rejected.
	err = s.Contacts.Insert(ctx, &domain.UserContact{ID: "con-4", UserID: "bob", ContactID: "alice", Status: domain.ContactPending})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAll_IteratesCollection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, uid := range []string{"alice", "bob"} {
		require.NoError(t, s.Users.Insert(ctx, &domain.User{UID: uid, CreatedAt: time.Now()}))
	}

	var uids []string
	for u, err := range s.Users.All(ctx) {
		require.NoError(t, err)
		uids = append(uids, u.UID)
	}
	assert.Equal(t, []string{"alice", "bob"}, uids)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[store.CollectionUsers])
	assert.Equal(t, 0, stats[store.CollectionReviews])
}

func TestRunGC_NothingToRewrite(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Reviews.Insert(context.Background(), review("rev-1", "alice", bookA, 8, time.Now())))

	assert.NoError(t, s.RunGC())
}
