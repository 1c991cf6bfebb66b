package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// ErrNotOwned is returned when changing the exchange flag of a book the user
// does not own.
var ErrNotOwned = domainerrors.NotFound("you do not own this book")

// LibraryService manages a user's owned, desired and favorite books.
type LibraryService struct {
	store   *store.Store
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewLibraryService creates a new library service.
func NewLibraryService(store *store.Store, catalog Catalog, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:   store,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// Toggle adds the book to the list, or removes it if already present, and
// reports whether the book is now on the list.
func (s *LibraryService) Toggle(ctx context.Context, userID string, list domain.LibraryList, bookID string) (bool, error) {
	bookID = normalize.BookID(bookID)
	if bookID == "" {
		return false, domainerrors.Validation("bookId is required")
	}

	var active bool
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		switch list {
		case domain.ListOwned:
			active, err = s.toggleOwned(tx, userID, bookID)
		case domain.ListDesired:
			active, err = s.toggleMarker(tx, s.store.Desires, id.PrefixDesire, userID, bookID)
		case domain.ListFavorites:
			active, err = s.toggleMarker(tx, s.store.Favorites, id.PrefixFavorite, userID, bookID)
		default:
			err = domainerrors.Validationf("unknown library list %q", list)
		}
		return err
	})
	if err != nil {
		return false, storeError(err, "failed to update library")
	}

	s.logger.Debug("library toggled", "user_id", userID, "list", list, "book_id", bookID, "active", active)
	return active, nil
}

func (s *LibraryService) toggleOwned(tx *store.Tx, userID, bookID string) (bool, error) {
	own, err := s.store.OwnershipTx(tx, userID, bookID)
	if err == nil {
		return false, s.store.Ownership.DeleteTx(tx, own.ID)
	}
	if !store.IsNotFound(err) {
		return false, err
	}

	ownID, err := id.Generate(id.PrefixOwnership)
	if err != nil {
		return false, err
	}
	now := s.now()
	return true, s.store.Ownership.InsertTx(tx, &domain.BookOwnership{
		ID:        ownID,
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (s *LibraryService) toggleMarker(tx *store.Tx, c *store.Collection[domain.BookMarker], prefix, userID, bookID string) (bool, error) {
	m, err := store.MarkerTx(c, tx, userID, bookID)
	if err == nil {
		return false, c.DeleteTx(tx, m.ID)
	}
	if !store.IsNotFound(err) {
		return false, err
	}

	markerID, err := id.Generate(prefix)
	if err != nil {
		return false, err
	}
	return true, c.InsertTx(tx, &domain.BookMarker{
		ID:        markerID,
		UserID:    userID,
		BookID:    bookID,
		CreatedAt: s.now(),
	})
}

// SetForExchange marks an owned book as available (or not) for exchange.
func (s *LibraryService) SetForExchange(ctx context.Context, userID, bookID string, available bool) (*domain.BookOwnership, error) {
	bookID = normalize.BookID(bookID)

	var own *domain.BookOwnership
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		own, err = s.store.OwnershipTx(tx, userID, bookID)
		if err != nil {
			if store.IsNotFound(err) {
				return ErrNotOwned
			}
			return err
		}
		own.SetForExchange(available)
		own.UpdatedAt = s.now()
		return s.store.Ownership.ReplaceTx(tx, own)
	})
	if err != nil {
		return nil, storeError(err, "failed to update book status")
	}
	return own, nil
}

// List returns a user's list newest first, with books resolved from the
// catalog. Books that fail to resolve are shown as placeholders.
func (s *LibraryService) List(ctx context.Context, userID string, list domain.LibraryList) ([]domain.LibraryEntry, error) {
	var entries []domain.LibraryEntry
	var err error

	switch list {
	case domain.ListOwned:
		var owned []*domain.BookOwnership
		owned, err = s.store.Ownership.Find(ctx, "user", userID)
		for _, o := range owned {
			entries = append(entries, domain.LibraryEntry{
				ID:          o.ID,
				BookID:      o.BookID,
				AddedAt:     o.CreatedAt,
				ForExchange: o.ForExchange(),
			})
		}
	case domain.ListDesired, domain.ListFavorites:
		c := s.store.Desires
		if list == domain.ListFavorites {
			c = s.store.Favorites
		}
		var markers []*domain.BookMarker
		markers, err = c.Find(ctx, "user", userID)
		for _, m := range markers {
			entries = append(entries, domain.LibraryEntry{ID: m.ID, BookID: m.BookID, AddedAt: m.CreatedAt})
		}
	default:
		return nil, domainerrors.Validationf("unknown library list %q", list)
	}
	if err != nil {
		return nil, storeError(err, "failed to load library")
	}

	slices.SortStableFunc(entries, func(a, b domain.LibraryEntry) int {
		return b.AddedAt.Compare(a.AddedAt)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.BookID
	}
	books := resolveBooks(ctx, s.catalog, normalize.BookIDs(ids), s.logger)
	for i := range entries {
		entries[i].Book = bookOrPlaceholder(books, entries[i].BookID)
	}

	if entries == nil {
		entries = []domain.LibraryEntry{}
	}
	return entries, nil
}
