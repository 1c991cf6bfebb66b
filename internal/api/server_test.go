package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/auth"
	"github.com/Arax734/bookshare-app-sub001/internal/catalog"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/service"
	"github.com/Arax734/bookshare-app-sub001/internal/sse"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// testCatalog serves books from memory and can be told to fail.
type testCatalog struct {
	mu        sync.Mutex
	books     map[string]domain.Book
	getErr    map[string]error
	searchErr error
	searches  []catalog.SearchParams
}

func newTestCatalog(books ...domain.Book) *testCatalog {
	c := &testCatalog{books: make(map[string]domain.Book), getErr: make(map[string]error)}
	for _, b := range books {
		c.books[normalize.BookID(string(b.ID))] = b
	}
	return c
}

func (c *testCatalog) failBook(bookID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr[normalize.BookID(bookID)] = err
}

func (c *testCatalog) failSearch(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchErr = err
}

func (c *testCatalog) GetBook(_ context.Context, bookID string) (*domain.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bookID = normalize.BookID(bookID)
	if err := c.getErr[bookID]; err != nil {
		return nil, err
	}
	b, ok := c.books[bookID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &b, nil
}

func (c *testCatalog) Search(_ context.Context, p catalog.SearchParams) (*domain.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.searches = append(c.searches, p)
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	limit := p.Limit
	if limit <= 0 {
		limit = catalog.DefaultSearchLimit
	}
	var bibs []domain.Book
	for _, id := range c.sortedIDs() {
		b := c.books[id]
		if p.Search != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(p.Search)) {
			continue
		}
		if len(bibs) == limit {
			return &domain.SearchResult{Bibs: bibs, NextPage: "sinceId=" + id}, nil
		}
		bibs = append(bibs, b)
	}
	return &domain.SearchResult{Bibs: bibs}, nil
}

func (c *testCatalog) FetchSimilar(_ context.Context, f catalog.SimilarFilters) []domain.Book {
	c.mu.Lock()
	defer c.mu.Unlock()

	limit := f.Limit
	if limit <= 0 {
		limit = catalog.DefaultSimilarLimit
	}
	var out []domain.Book
	for _, id := range c.sortedIDs() {
		b := c.books[id]
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

func (c *testCatalog) sortedIDs() []string {
	ids := make([]string, 0, len(c.books))
	for id := range c.books {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// testServer bundles the server with what tests need to drive it.
type testServer struct {
	*Server
	catalog *testCatalog
	tokens  *auth.TokenService
}

type serverOption func(*config.Config)

func withProduction() serverOption {
	return func(c *config.Config) { c.App.Environment = "production" }
}

func withRateLimit(rps float64, burst int) serverOption {
	return func(c *config.Config) {
		c.Server.RateLimitRPS = rps
		c.Server.RateLimitBurst = burst
	}
}

func setupTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cat := newTestCatalog(
		testBook(1, "Wiedźmin", "Sapkowski, Andrzej", "Fantasy", "polski", "1990"),
		testBook(2, "Solaris", "Lem, Stanisław", "Science fiction", "polski", "1961"),
		testBook(3, "Krew elfów", "Sapkowski, Andrzej", "Fantasy", "polski", "1994"),
		testBook(4, "Lalka", "Prus, Bolesław", "Powieść", "polski", "1890"),
	)
	srv, tokens := newServerWithCatalog(t, cat, opts...)
	return &testServer{Server: srv, catalog: cat, tokens: tokens}
}

// fullCatalog is what both the handlers and the services need from a catalog.
type fullCatalog interface {
	Catalog
	service.Catalog
}

// newServerWithCatalog builds a server over a fresh store and the given catalog.
func newServerWithCatalog(t *testing.T, cat fullCatalog, opts ...serverOption) (*Server, *auth.TokenService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		App: config.AppConfig{Environment: "development"},
		Server: config.ServerConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	key, err := auth.DeriveKey("test-secret-key-for-testing-only")
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, time.Hour)
	require.NoError(t, err)

	sseManager := sse.NewManager(logger)
	notifications := service.NewNotificationService(st, sseManager, logger)
	ratings := service.NewRatingService(st, logger)
	services := &Services{
		Catalog:         cat,
		Ratings:         ratings,
		Recommendations: service.NewRecommendationService(st, cat, ratings, logger),
		Exchanges:       service.NewExchangeService(st, cat, notifications, logger),
		Library:         service.NewLibraryService(st, cat, logger),
		Contacts:        service.NewContactService(st, notifications, logger),
		Reviews:         service.NewReviewService(st, logger),
		Users:           service.NewUserService(st, notifications, nil, logger),
		Notifications:   notifications,
	}

	srv := NewServer(cfg, st, services, tokens, sseManager, logger)
	t.Cleanup(srv.Close)
	return srv, tokens
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

func bookID(n int) string {
	return normalize.BookID(strconv.Itoa(n))
}

// tokenFor issues a session token for a user named after its uid.
func (ts *testServer) tokenFor(t *testing.T, uid string) string {
	t.Helper()

	token, err := ts.tokens.Issue(domain.Identity{UID: uid, Email: uid + "@example.com", DisplayName: strings.ToUpper(uid[:1]) + uid[1:]})
	require.NoError(t, err)
	return token
}

// do sends a request as uid (anonymous when empty) and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokenFor(t, uid))
	}

	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

// createTestUser signs a user in once so their document exists.
func (ts *testServer) createTestUser(t *testing.T, uid string) {
	t.Helper()

	w := ts.do(t, http.MethodGet, "/api/me", uid, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (ts *testServer) connect(t *testing.T, from, to string) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/contacts", from, map[string]string{"contactId": to})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	edge := decode[domain.UserContact](t, w)

	w = ts.do(t, http.MethodPost, "/api/contacts/"+edge.ID+"/accept", to, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (ts *testServer) own(t *testing.T, uid string, n int) {
	t.Helper()

	w := ts.do(t, http.MethodPut, "/api/library/owned/"+bookID(n), uid, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, decode[ToggleLibraryResponse](t, w).Active)
}
