// Package cache keeps catalog book details in a local SQLite database so
// repeated lookups of the same book do not hit the upstream API.
//
// Every method swallows its own failures: a broken cache behaves like an
// empty one.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DefaultTTL is used when Open is given a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Cache is a TTL-bounded book detail cache.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Open creates or opens the cache database at path. Use ":memory:" for a
// throwaway cache.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// An in-memory database exists per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Cache{
		db:     db,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
		done:   make(chan struct{}),
	}, nil
}

// GetBook returns a cached, unexpired book.
func (c *Cache) GetBook(ctx context.Context, id string) (*domain.Book, bool) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM books WHERE id = ? AND expires_at > ?`,
		id, formatTime(c.now()),
	).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("catalog cache read failed", "book_id", id, "error", err)
		}
		return nil, false
	}

	var book domain.Book
	if err := json.Unmarshal(payload, &book); err != nil {
		c.logger.Warn("catalog cache entry corrupt", "book_id", id, "error", err)
		return nil, false
	}
	return &book, true
}

// PutBook stores book under id, replacing any previous entry.
func (c *Cache) PutBook(ctx context.Context, id string, book *domain.Book) {
	payload, err := json.Marshal(book)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", "book_id", id, "error", err)
		return
	}

	now := c.now()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO books (id, payload, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		id, payload, formatTime(now), formatTime(now.Add(c.ttl)),
	)
	if err != nil {
		c.logger.Warn("catalog cache write failed", "book_id", id, "error", err)
	}
}

// Purge deletes expired entries and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM books WHERE expires_at <= ?`, formatTime(c.now()))
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// StartJanitor purges expired entries every interval until Close.
func (c *Cache) StartJanitor(interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				n, err := c.Purge(context.Background())
				if err != nil {
					c.logger.Warn("catalog cache purge failed", "error", err)
					continue
				}
				if n > 0 {
					c.logger.Debug("catalog cache purged", "removed", n)
				}
			}
		}
	}()
}

// Close stops the janitor and closes the database.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
	return c.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
