package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cache Cache) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:          srv.URL + "/api/institutions/bibs.json",
		Timeout:          2 * time.Second,
		RequestsPerSec:   1000,
		Burst:            1000,
		RetryAttempts:    3,
		RetryDelay:       time.Millisecond,
		BreakerThreshold: 3,
	}, slog.New(slog.DiscardHandler), cache)
	t.Cleanup(c.Close)
	return c, srv
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestGetBook_PadsIDAndReturnsFirstBib(t *testing.T) {
	var gotID string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("id")
		writeJSON(w, `{"bibs":[{"id":12345,"title":"Solaris","author":"Lem, Stanisław (1921-2006)","publicationYear":"1961"},{"id":"2","title":"Other"}],"nextPage":""}`)
	}, nil)

	book, err := c.GetBook(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, "00000000012345", gotID)
	assert.Equal(t, domain.FlexString("12345"), book.ID)
	assert.Equal(t, "Solaris", book.Title)
	assert.Equal(t, 1961, book.Year())
}

func TestGetBook_NotFoundOnEmptyOrNullBibs(t *testing.T) {
	for name, body := range map[string]string{
		"empty": `{"bibs":[]}`,
		"null":  `{"bibs":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, body)
			}, nil)

			_, err := c.GetBook(context.Background(), "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)

			var opErr *Error
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, "getBook", opErr.Op)
			assert.Equal(t, "00000000000001", opErr.BookID)
		})
	}
}

func TestGetBook_UpstreamStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	_, err := c.GetBook(context.Background(), "1")
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "closed", c.BreakerState())
}

func TestGetBook_NetworkFailureIsUnavailable(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"bibs":[]}`)
	}, nil)
	srv.Close()

	_, err := c.GetBook(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDoRequest_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			// Drop the connection without a response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		writeJSON(w, `{"bibs":[{"id":"1","title":"Recovered"}]}`)
	}, nil)

	book, err := c.GetBook(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", book.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"bibs":[]}`)
	}, nil)
	srv.Close()

	// Three attempts in one call reach the threshold of three.
	_, err := c.GetBook(context.Background(), "1")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "open", c.BreakerState())

	_, err = c.Search(context.Background(), SearchParams{Search: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch_MapsSearchType(t *testing.T) {
	tests := []struct {
		searchType string
		wantParam  string
	}{
		{"title", "title"},
		{"author", "author"},
		{"isbn", "isbnIssn"},
		{"", "search"},
		{"publisher", "search"},
	}

	for _, tt := range tests {
		t.Run(tt.searchType, func(t *testing.T) {
			var query map[string][]string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query()
				writeJSON(w, `{"bibs":[{"id":"1","title":"A"}],"nextPage":"https://example.test/next"}`)
			}, nil)

			res, err := c.Search(context.Background(), SearchParams{Search: "lem", SearchType: tt.searchType, SinceID: "77"})
			require.NoError(t, err)

			assert.Equal(t, []string{"lem"}, query[tt.wantParam])
			assert.Equal(t, []string{"10"}, query["limit"])
			assert.Equal(t, []string{"77"}, query["sinceId"])
			assert.Len(t, res.Bibs, 1)
			assert.Equal(t, "https://example.test/next", res.NextPage)
		})
	}
}

func TestSearch_NullBibsIsEmptyPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"bibs":null}`)
	}, nil)

	res, err := c.Search(context.Background(), SearchParams{Limit: 5})
	require.NoError(t, err)
	assert.NotNil(t, res.Bibs)
	assert.Empty(t, res.Bibs)
}

func TestFetchSimilar_AuthorOverfetchAndLocalFilter(t *testing.T) {
	var query map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, `{"bibs":[
			{"id":"1","title":"2001","author":"Clarke, Arthur C. (1917-2008)"},
			{"id":"2","title":"Other","author":"Clarke, Susanna"},
			{"id":"3","title":"Rama","author":"Clarke, Arthur C."},
			{"id":"4","title":"Fountains","author":"Arthur C. Clarke"}
		]}`)
	}, nil)

	books := c.FetchSimilar(context.Background(), SimilarFilters{Author: "Arthur Clarke", Limit: 2})

	assert.Equal(t, []string{"Arthur"}, query["author"])
	assert.Equal(t, []string{"50"}, query["limit"])
	require.Len(t, books, 2)
	assert.Equal(t, "2001", books[0].Title)
	assert.Equal(t, "Rama", books[1].Title)
}

func TestFetchSimilar_GenreAndLanguage(t *testing.T) {
	var query map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		writeJSON(w, `{"bibs":[{"id":"1","title":"A"}]}`)
	}, nil)

	books := c.FetchSimilar(context.Background(), SimilarFilters{Genre: "Fantastyka", Language: "polski"})

	assert.Equal(t, []string{"Fantastyka"}, query["genre"])
	assert.Equal(t, []string{"polski"}, query["language"])
	assert.Equal(t, []string{"10"}, query["limit"])
	assert.Len(t, books, 1)
}

func TestFetchSimilar_EmptyOnFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	books := c.FetchSimilar(context.Background(), SimilarFilters{Genre: "x"})
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

type memCache struct {
	mu    sync.Mutex
	books map[string]domain.Book
}

func (m *memCache) GetBook(_ context.Context, id string) (*domain.Book, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, false
	}
	return &b, true
}

func (m *memCache) PutBook(_ context.Context, id string, b *domain.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[id] = *b
}

func TestGetBook_UsesCache(t *testing.T) {
	var calls atomic.Int32
	cache := &memCache{books: map[string]domain.Book{}}
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"bibs":[{"id":"1","title":"Cached"}]}`)
	}, cache)

	for range 3 {
		book, err := c.GetBook(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, "Cached", book.Title)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetBook_NotFoundIsNotCached(t *testing.T) {
	var calls atomic.Int32
	cache := &memCache{books: map[string]domain.Book{}}
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, `{"bibs":[]}`)
	}, cache)

	for range 2 {
		_, err := c.GetBook(context.Background(), "1")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetBook_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, `{"bibs":[{"id":"1"}]}`)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetBook(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable))
}
