// Package catalog is the gateway to the external bibliographic catalog
// (Biblioteka Narodowa "bibs" API). It pads book identifiers, maps upstream
// responses onto a small error taxonomy, and protects the upstream with a
// rate limiter, bounded retries and a circuit breaker.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
	"github.com/Arax734/bookshare-app-sub001/internal/metrics"
	"github.com/Arax734/bookshare-app-sub001/internal/normalize"
	"github.com/Arax734/bookshare-app-sub001/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public bibs endpoint.
	DefaultBaseURL = "https://data.bn.org.pl/api/institutions/bibs.json"

	defaultTimeout       = 10 * time.Second
	defaultRPS           = 5.0
	defaultBurst         = 10
	defaultRetryAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
	defaultBreakerTrip   = 5
	breakerOpenTimeout   = 30 * time.Second

	// DefaultSearchLimit applies when a search names no limit.
	DefaultSearchLimit = 10
	// DefaultSimilarLimit applies when similar-book filters name no limit.
	DefaultSimilarLimit = 10
	// authorOverfetch is the minimum upstream limit for author queries, which
	// are re-filtered locally.
	authorOverfetch = 50

	limiterKey  = "catalog"
	breakerName = "catalog-api"
	userAgent   = "Bookshare/1.0"
)

// Config tunes the client. Zero values fall back to defaults.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	RequestsPerSec   float64
	Burst            int
	RetryAttempts    int
	RetryDelay       time.Duration
	BreakerThreshold int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = defaultRPS
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerTrip
	}
	return c
}

// Cache stores book details between requests. Implementations must treat
// their own failures as misses.
type Cache interface {
	GetBook(ctx context.Context, id string) (*domain.Book, bool)
	PutBook(ctx context.Context, id string, book *domain.Book)
}

// Client is a rate-limited, circuit-broken catalog API client.
type Client struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cache   Cache
	logger  *slog.Logger
	cfg     Config
}

// New creates a catalog client. cache may be nil.
func New(cfg Config, logger *slog.Logger, cache Cache) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: ratelimit.New(cfg.RequestsPerSec, cfg.Burst),
		cache:   cache,
		logger:  logger,
		cfg:     cfg,
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	threshold := uint32(cfg.BreakerThreshold) //nolint:gosec // validated positive above
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Upstream statuses and caller cancellations say nothing about
		// catalog health.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransport(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("catalog circuit breaker state change",
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return c
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// GetBook fetches one bib by id. The id is padded before the lookup and the
// first record of the response wins.
func (c *Client) GetBook(ctx context.Context, id string) (book *domain.Book, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCatalog("get_book", outcome(err), start) }()

	padded := normalize.BookID(id)
	if padded == "" {
		return nil, wrapError("getBook", id, ErrNotFound)
	}

	if c.cache != nil {
		if cached, ok := c.cache.GetBook(ctx, padded); ok {
			metrics.CacheResult(true)
			return cached, nil
		}
		metrics.CacheResult(false)
	}

	q := url.Values{}
	q.Set("id", padded)

	resp, err := c.fetchBibs(ctx, q)
	if err != nil {
		return nil, wrapError("getBook", padded, err)
	}
	if len(resp.Bibs) == 0 {
		return nil, wrapError("getBook", padded, ErrNotFound)
	}

	b := resp.Bibs[0]
	if c.cache != nil {
		c.cache.PutBook(ctx, padded, &b)
	}
	return &b, nil
}

// SearchParams are the book search inputs.
type SearchParams struct {
	Search     string
	SearchType string
	SinceID    string
	Limit      int
}

// searchField maps a search type onto the upstream query parameter.
func searchField(searchType string) string {
	switch searchType {
	case "title":
		return "title"
	case "author":
		return "author"
	case "isbn":
		return "isbnIssn"
	default:
		return "search"
	}
}

// Search queries the catalog. An unknown search type degrades to a generic
// free-text search.
func (c *Client) Search(ctx context.Context, p SearchParams) (result *domain.SearchResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCatalog("search", outcome(err), start) }()

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	q := url.Values{}
	if p.Search != "" {
		q.Set(searchField(p.SearchType), p.Search)
	}
	q.Set("limit", strconv.Itoa(limit))
	if p.SinceID != "" {
		q.Set("sinceId", p.SinceID)
	}

	resp, err := c.fetchBibs(ctx, q)
	if err != nil {
		return nil, wrapError("search", "", err)
	}

	bibs := resp.Bibs
	if bibs == nil {
		bibs = []domain.Book{}
	}
	return &domain.SearchResult{Bibs: bibs, NextPage: resp.NextPage}, nil
}

// SimilarFilters select candidate books for recommendations.
type SimilarFilters struct {
	Genre    string
	Author   string
	Language string
	Limit    int
}

// FetchSimilar returns books matching the filters. The upstream author
// filter is unreliable for multi-author records, so author queries send only
// the first name token, over-fetch, and re-filter locally. Failures yield an
// empty list.
func (c *Client) FetchSimilar(ctx context.Context, f SimilarFilters) []domain.Book {
	start := time.Now()

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	upstreamLimit := limit

	q := url.Values{}
	if f.Genre != "" {
		q.Set("genre", f.Genre)
	}
	if f.Language != "" {
		q.Set("language", f.Language)
	}
	if f.Author != "" {
		if token := normalize.FirstNameToken(f.Author); token != "" {
			q.Set("author", token)
		}
		upstreamLimit = max(limit, authorOverfetch)
	}
	q.Set("limit", strconv.Itoa(upstreamLimit))

	resp, err := c.fetchBibs(ctx, q)
	metrics.ObserveCatalog("similar", outcome(err), start)
	if err != nil {
		c.logger.Warn("similar books lookup failed",
			"genre", f.Genre,
			"author", f.Author,
			"language", f.Language,
			"error", err,
		)
		return []domain.Book{}
	}

	books := make([]domain.Book, 0, min(limit, len(resp.Bibs)))
	for _, b := range resp.Bibs {
		if f.Author != "" && !normalize.AuthorMatches(b.Author, f.Author) {
			continue
		}
		books = append(books, b)
		if len(books) == limit {
			break
		}
	}
	return books
}

type bibsResponse struct {
	NextPage string        `json:"nextPage"`
	Bibs     []domain.Book `json:"bibs"`
}

func (c *Client) fetchBibs(ctx context.Context, q url.Values) (*bibsResponse, error) {
	body, err := c.doRequest(ctx, q)
	if err != nil {
		return nil, err
	}

	var resp bibsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	for i := range resp.Bibs {
		sanitize(&resp.Bibs[i])
	}
	return &resp, nil
}

// doRequest executes a catalog request through the limiter and breaker,
// retrying network-level failures with exponential backoff.
func (c *Client) doRequest(ctx context.Context, q url.Values) ([]byte, error) {
	delay := c.cfg.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx, limiterKey); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrUnavailable, err)
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.execute(ctx, q)
		})
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if !isTransport(err) {
			return nil, err
		}

		lastErr = err
		if attempt == c.cfg.RetryAttempts {
			break
		}

		c.logger.Debug("catalog request failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (c *Client) execute(ctx context.Context, q url.Values) ([]byte, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("catalog request", "query", u.RawQuery)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}
	return body, nil
}

func sanitize(b *domain.Book) {
	b.ID = domain.FlexString(normalize.CatalogValue(string(b.ID)))
	b.Title = normalize.CatalogValue(b.Title)
	b.Author = normalize.CatalogValue(b.Author)
	b.Genre = normalize.CatalogValue(b.Genre)
	b.Kind = normalize.CatalogValue(b.Kind)
	b.Domain = normalize.CatalogValue(b.Domain)
	b.Language = normalize.CatalogValue(b.Language)
	b.PublicationYear = domain.FlexString(normalize.CatalogValue(string(b.PublicationYear)))
	b.Publisher = normalize.CatalogValue(b.Publisher)
	b.PlaceOfPublication = normalize.CatalogValue(b.PlaceOfPublication)
	b.IsbnIssn = normalize.CatalogValue(b.IsbnIssn)
	b.FormOfWork = normalize.CatalogValue(b.FormOfWork)
	b.Subject = normalize.CatalogValue(b.Subject)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
