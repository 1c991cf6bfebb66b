// Package service provides the business logic layer: ratings,
// recommendations, the exchange workflow, libraries, contacts, reviews,
// users and notifications.
package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// fanoutLimit bounds concurrent catalog and store lookups per request.
const fanoutLimit = 8

// Catalog is the part of the catalog gateway the services depend on.
type Catalog interface {
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	FetchSimilar(ctx context.Context, f catalog.SimilarFilters) []domain.Book
}

// Publisher is told about writes that change what a user should be
// notified of.
type Publisher interface {
	ExchangeChanged(ctx context.Context, ex *domain.Exchange)
	ContactChanged(ctx context.Context, edge *domain.UserContact)
}

type noopPublisher struct{}

func (noopPublisher) ExchangeChanged(context.Context, *domain.Exchange)    {}
func (noopPublisher) ContactChanged(context.Context, *domain.UserContact) {}

// resolveBooks looks up ids concurrently. Failed lookups are logged and
// left out of the result.
func resolveBooks(ctx context.Context, cat Catalog, ids []string, logger *slog.Logger) map[string]domain.Book {
	results := make([]*domain.Book, len(ids))

	var g errgroup.Group
	g.SetLimit(fanoutLimit)
	for i, bookID := range ids {
		g.Go(func() error {
			b, err := cat.GetBook(ctx, bookID)
			if err != nil {
				logger.Debug("book lookup failed", "book_id", bookID, "error", err)
				return nil
			}
			results[i] = b
			return nil
		})
	}
	_ = g.Wait() // per-item errors are swallowed above

	books := make(map[string]domain.Book, len(ids))
	for i, b := range results {
		if b != nil {
			books[ids[i]] = *b
		}
	}
	return books
}

// bookOrPlaceholder returns the resolved book for id, or the placeholder.
func bookOrPlaceholder(books map[string]domain.Book, bookID string) domain.Book {
	if b, ok := books[bookID]; ok {
		return b
	}
	return domain.PlaceholderBook(bookID)
}

// storeError converts a storage failure into a domain error. Domain errors
// raised inside a transaction pass through unchanged.
func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var domErr *domainerrors.Error
	switch {
	case errors.As(err, &domErr):
		return err
	case errors.Is(err, store.ErrConflict):
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "the record was modified concurrently, please retry")
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
	}
}
