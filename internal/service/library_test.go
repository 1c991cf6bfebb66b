package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
)

func setupLibraryService(t *testing.T) (*LibraryService, *fakeCatalog) {
	t.Helper()
	cat := newFakeCatalog(
		testBook(1, "Lalka", "Prus, Bolesław", "Powieść", "polski", "1890"),
		testBook(2, "Quo vadis", "Sienkiewicz, Henryk", "Powieść", "polski", "1896"),
	)
	return NewLibraryService(setupTestStore(t), cat, testLogger()), cat
}

func TestLibraryService_Toggle(t *testing.T) {
	for _, list := range []domain.LibraryList{domain.ListOwned, domain.ListDesired, domain.ListFavorites} {
		t.Run(string(list), func(t *testing.T) {
			svc, _ := setupLibraryService(t)
			ctx := context.Background()

			active, err := svc.Toggle(ctx, "alice", list, "1")
			require.NoError(t, err)
			assert.True(t, active)

			entries, err := svc.List(ctx, "alice", list)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, bookID(1), entries[0].BookID)
			assert.Equal(t, "Lalka", entries[0].Book.Title)

			// Padded and unpadded ids are the same book.
			active, err = svc.Toggle(ctx, "alice", list, bookID(1))
			require.NoError(t, err)
			assert.False(t, active)

			entries, err = svc.List(ctx, "alice", list)
			require.NoError(t, err)
			assert.NotNil(t, entries)
			assert.Empty(t, entries)
		})
	}
}

func TestLibraryService_Toggle_RejectsUnknownList(t *testing.T) {
	svc, _ := setupLibraryService(t)

	_, err := svc.Toggle(context.Background(), "alice", "borrowed", bookID(1))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.Toggle(context.Background(), "alice", domain.ListOwned, "  ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestLibraryService_SetForExchange(t *testing.T) {
	svc, _ := setupLibraryService(t)
	ctx := context.Background()

	_, err := svc.SetForExchange(ctx, "alice", bookID(1), true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "you do not own this book", err.Error())

	_, err = svc.Toggle(ctx, "alice", domain.ListOwned, bookID(1))
	require.NoError(t, err)

	own, err := svc.SetForExchange(ctx, "alice", "1", true)
	require.NoError(t, err)
	assert.True(t, own.ForExchange())

	entries, err := svc.List(ctx, "alice", domain.ListOwned)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ForExchange)

	own, err = svc.SetForExchange(ctx, "alice", bookID(1), false)
	require.NoError(t, err)
	assert.False(t, own.ForExchange())
}

func TestLibraryService_List_NewestFirstWithPlaceholders(t *testing.T) {
	svc, cat := setupLibraryService(t)
	ctx := context.Background()
	cat.fail(bookID(2))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	_, err := svc.Toggle(ctx, "alice", domain.ListDesired, bookID(1))
	require.NoError(t, err)
	svc.now = func() time.Time { return base.Add(time.Hour) }
	_, err = svc.Toggle(ctx, "alice", domain.ListDesired, bookID(2))
	require.NoError(t, err)

	entries, err := svc.List(ctx, "alice", domain.ListDesired)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, bookID(2), entries[0].BookID)
	assert.Equal(t, domain.PlaceholderTitle, entries[0].Book.Title)
	assert.Equal(t, "Lalka", entries[1].Book.Title)
}
