package store

import (
	"context"
	"errors"
	"slices"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

// UserBookKey is the unique key of a per-user, per-book document.
func UserBookKey(userID, bookID string) string {
	return userBookKey(userID, bookID)
}

// ReviewsForBook returns the reviews of a book, newest first.
func (s *Store) ReviewsForBook(ctx context.Context, bookID string) ([]*domain.Review, error) {
	reviews, err := s.Reviews.Find(ctx, "book", bookID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(reviews)
	return reviews, nil
}

// ReviewsByUser returns a user's reviews, newest first.
func (s *Store) ReviewsByUser(ctx context.Context, userID string) ([]*domain.Review, error) {
	reviews, err := s.Reviews.Find(ctx, "user", userID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(reviews)
	return reviews, nil
}

func sortNewestFirst(reviews []*domain.Review) {
	slices.SortStableFunc(reviews, func(a, b *domain.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// OwnershipTx returns the user's ownership record for a book, or ErrNotFound.
func (s *Store) OwnershipTx(tx *Tx, userID, bookID string) (*domain.BookOwnership, error) {
	return s.Ownership.FindOneTx(tx, "userBook", userBookKey(userID, bookID))
}

// MarkerTx returns the user's desire or favorite marker for a book, or ErrNotFound.
func MarkerTx(c *Collection[domain.BookMarker], tx *Tx, userID, bookID string) (*domain.BookMarker, error) {
	return c.FindOneTx(tx, "userBook", userBookKey(userID, bookID))
}

// ContactBetweenTx returns the edge between two users in either direction, or ErrNotFound.
func (s *Store) ContactBetweenTx(tx *Tx, a, b string) (*domain.UserContact, error) {
	return s.Contacts.FindOneTx(tx, "pair", domain.PairKey(a, b))
}

// ContactsOfTx returns every edge touching userID, outgoing first.
func (s *Store) ContactsOfTx(tx *Tx, userID string) ([]*domain.UserContact, error) {
	outgoing, err := s.Contacts.FindTx(tx, "user", userID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.Contacts.FindTx(tx, "contact", userID)
	if err != nil {
		return nil, err
	}
	return append(outgoing, incoming...), nil
}

// ContactsOf is ContactsOfTx in a read transaction.
func (s *Store) ContactsOf(ctx context.Context, userID string) ([]*domain.UserContact, error) {
	var edges []*domain.UserContact
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		edges, err = s.ContactsOfTx(tx, userID)
		return err
	})
	return edges, err
}

// ExchangesOfTx returns the exchanges a user proposed and received.
func (s *Store) ExchangesOfTx(tx *Tx, userID string) (proposed, received []*domain.Exchange, err error) {
	proposed, err = s.Exchanges.FindTx(tx, "user", userID)
	if err != nil {
		return nil, nil, err
	}
	received, err = s.Exchanges.FindTx(tx, "contact", userID)
	if err != nil {
		return nil, nil, err
	}
	return proposed, received, nil
}

// ExchangesOf is ExchangesOfTx in a read transaction.
func (s *Store) ExchangesOf(ctx context.Context, userID string) (proposed, received []*domain.Exchange, err error) {
	err = s.View(ctx, func(tx *Tx) error {
		var verr error
		proposed, received, verr = s.ExchangesOfTx(tx, userID)
		return verr
	})
	return proposed, received, err
}

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is a duplicate id or unique key.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
