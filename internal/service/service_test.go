package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/id"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCatalog serves books from memory. FetchSimilar scans books in id order.
type fakeCatalog struct {
	mu      sync.Mutex
	books   map[string]domain.Book
	failing map[string]bool
	similar []catalog.SimilarFilters
}

func newFakeCatalog(books ...domain.Book) *fakeCatalog {
	c := &fakeCatalog{books: make(map[string]domain.Book), failing: make(map[string]bool)}
	for _, b := range books {
		c.books[normalize.BookID(string(b.ID))] = b
	}
	return c
}

func (c *fakeCatalog) fail(bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[normalize.BookID(bookID)] = true
}

func (c *fakeCatalog) GetBook(_ context.Context, bookID string) (*domain.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bookID = normalize.BookID(bookID)
	if c.failing[bookID] {
		return nil, catalog.ErrUnavailable
	}
	b, ok := c.books[bookID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &b, nil
}

func (c *fakeCatalog) FetchSimilar(_ context.Context, f catalog.SimilarFilters) []domain.Book {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.similar = append(c.similar, f)
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	ids := make([]string, 0, len(c.books))
	for bookID := range c.books {
		ids = append(ids, bookID)
	}
	slices.Sort(ids)

	out := []domain.Book{}
	for _, bookID := range ids {
		b := c.books[bookID]
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if f.Language != "" && b.Language != f.Language {
			continue
		}
		if f.Author != "" && !normalize.AuthorMatches(b.Author, f.Author) {
			continue
		}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	return out
}

// recordingPublisher collects every published change.
type recordingPublisher struct {
	mu        sync.Mutex
	exchanges []domain.ExchangeStatus
	contacts  []domain.ContactStatus
}

func (p *recordingPublisher) ExchangeChanged(_ context.Context, ex *domain.Exchange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, ex.Status)
}

func (p *recordingPublisher) ContactChanged(_ context.Context, edge *domain.UserContact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contacts = append(p.contacts, edge.Status)
}

func bookID(n int) string {
	return fmt.Sprintf("%014d", n)
}

func testBook(n int, title, author, genre, language, year string) domain.Book {
	return domain.Book{
		ID:              domain.FlexString(bookID(n)),
		Title:           title,
		Author:          author,
		Genre:           genre,
		Language:        language,
		PublicationYear: domain.FlexString(year),
	}
}

func createTestUser(t *testing.T, s *store.Store, uid, displayName string) *domain.User {
	t.Helper()
	u := &domain.User{
		UID:         uid,
		Email:       uid + "@test.com",
		DisplayName: displayName,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, s.Users.Insert(context.Background(), u))
	return u
}

func createTestReview(t *testing.T, s *store.Store, uid, book string, rating int, at time.Time) *domain.Review {
	t.Helper()
	r := &domain.Review{
		ID:        id.MustGenerate(id.PrefixReview),
		UserID:    uid,
		BookID:    normalize.BookID(book),
		Rating:    rating,
		CreatedAt: at,
	}
	require.NoError(t, s.Reviews.Insert(context.Background(), r))
	return r
}

func createTestOwnership(t *testing.T, s *store.Store, uid, book string) *domain.BookOwnership {
	t.Helper()
	o := &domain.BookOwnership{
		ID:        id.MustGenerate(id.PrefixOwnership),
		UserID:    uid,
		BookID:    normalize.BookID(book),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.Ownership.Insert(context.Background(), o))
	return o
}

func createTestContact(t *testing.T, s *store.Store, from, to string, status domain.ContactStatus) *domain.UserContact {
	t.Helper()
	edge := &domain.UserContact{
		ID:        id.MustGenerate(id.PrefixContact),
		UserID:    from,
		ContactID: to,
		Status:    status,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.Contacts.Insert(context.Background(), edge))
	return edge
}

func owners(t *testing.T, s *store.Store, book string) []string {
	t.Helper()
	records, err := s.Ownership.Find(context.Background(), "book", normalize.BookID(book))
	require.NoError(t, err)
	uids := make([]string, len(records))
	for i, o := range records {
		uids[i] = o.UserID
	}
	slices.Sort(uids)
	return uids
}
