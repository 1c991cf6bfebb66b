// Package store persists bookshare documents in Badger.
//
// Each collection keeps documents under "<collection>:<id>" as JSON and
// maintains secondary indexes in the same transaction as the document write:
//
//	idx:<collection>:<index>:<value>:<id>   non-unique, empty value
//	uniq:<collection>:<index>:<value>       unique, value is the document id
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/Arax734/bookshare-app-sub001/internal/domain"
)

// Collection names.
const (
	CollectionReviews   = "reviews"
	CollectionOwnership = "bookOwnership"
	CollectionDesires   = "bookDesire"
	CollectionFavorites = "bookFavorites"
	CollectionContacts  = "userContacts"
	CollectionExchanges = "bookExchanges"
	CollectionUsers     = "users"
)

// Collections lists every collection, in a stable order.
var Collections = []string{
	CollectionReviews,
	CollectionOwnership,
	CollectionDesires,
	CollectionFavorites,
	CollectionContacts,
	CollectionExchanges,
	CollectionUsers,
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Reviews   *Collection[domain.Review]
	Ownership *Collection[domain.BookOwnership]
	Desires   *Collection[domain.BookMarker]
	Favorites *Collection[domain.BookMarker]
	Contacts  *Collection[domain.UserContact]
	Exchanges *Collection[domain.Exchange]
	Users     *Collection[domain.User]

	loaders map[string]func(tx *Tx, raw []byte) error
}

// Options tune how the database is opened.
type Options struct {
	ReadOnly bool
	InMemory bool
}

// New opens (or creates) the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	return Open(path, logger, Options{})
}

// Open opens the database with explicit options.
func Open(path string, logger *slog.Logger, o Options) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = !o.InMemory
	opts.ReadOnly = o.ReadOnly
	opts.CompactL0OnClose = !o.ReadOnly

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initCollections()

	if logger != nil {
		logger.Info("Badger database opened", "path", path, "read_only", o.ReadOnly)
	}
	return s, nil
}

func (s *Store) initCollections() {
	s.Reviews = NewCollection(s, CollectionReviews, func(r *domain.Review) string { return r.ID }).
		WithIndex("book", func(r *domain.Review) string { return r.BookID }).
		WithIndex("user", func(r *domain.Review) string { return r.UserID }).
		WithUniqueIndex("userBook", func(r *domain.Review) string { return userBookKey(r.UserID, r.BookID) })

	s.Ownership = NewCollection(s, CollectionOwnership, func(o *domain.BookOwnership) string { return o.ID }).
		WithIndex("book", func(o *domain.BookOwnership) string { return o.BookID }).
		WithIndex("user", func(o *domain.BookOwnership) string { return o.UserID }).
		WithUniqueIndex("userBook", func(o *domain.BookOwnership) string { return userBookKey(o.UserID, o.BookID) })

	s.Desires = markerCollection(s, CollectionDesires)
	s.Favorites = markerCollection(s, CollectionFavorites)

	s.Contacts = NewCollection(s, CollectionContacts, func(c *domain.UserContact) string { return c.ID }).
		WithIndex("user", func(c *domain.UserContact) string { return c.UserID }).
		WithIndex("contact", func(c *domain.UserContact) string { return c.ContactID }).
		WithUniqueIndex("pair", func(c *domain.UserContact) string { return domain.PairKey(c.UserID, c.ContactID) })

	s.Exchanges = NewCollection(s, CollectionExchanges, func(e *domain.Exchange) string { return e.ID }).
		WithIndex("user", func(e *domain.Exchange) string { return e.UserID }).
		WithIndex("contact", func(e *domain.Exchange) string { return e.ContactID })

	s.Users = NewCollection(s, CollectionUsers, func(u *domain.User) string { return u.UID })

	s.loaders = map[string]func(tx *Tx, raw []byte) error{
		CollectionReviews:   s.Reviews.insertRawTx,
		CollectionOwnership: s.Ownership.insertRawTx,
		CollectionDesires:   s.Desires.insertRawTx,
		CollectionFavorites: s.Favorites.insertRawTx,
		CollectionContacts:  s.Contacts.insertRawTx,
		CollectionExchanges: s.Exchanges.insertRawTx,
		CollectionUsers:     s.Users.insertRawTx,
	}
}

func markerCollection(s *Store, name string) *Collection[domain.BookMarker] {
	return NewCollection(s, name, func(m *domain.BookMarker) string { return m.ID }).
		WithIndex("user", func(m *domain.BookMarker) string { return m.UserID }).
		WithUniqueIndex("userBook", func(m *domain.BookMarker) string { return userBookKey(m.UserID, m.BookID) })
}

func userBookKey(userID, bookID string) string {
	return userID + "|" + bookID
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Tx is a read or read-write transaction spanning any number of collections.
type Tx struct {
	txn *badger.Txn
}

// Update runs fn in a read-write transaction and commits it if fn returns nil.
// A commit that loses a race with a concurrent writer returns ErrConflict.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict.WithCause(err)
	}
	return err
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}

// Stats counts documents per collection.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(Collections))
	err := s.View(ctx, func(tx *Tx) error {
		for _, name := range Collections {
			prefix := []byte(docPrefix(name))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			it := tx.txn.NewIterator(opts)
			n := 0
			for it.Rewind(); it.Valid(); it.Next() {
				n++
			}
			it.Close()
			counts[name] = n
		}
		return nil
	})
	return counts, err
}

// Dump calls fn with every raw document of a collection, in key order.
func (s *Store) Dump(ctx context.Context, collection string, fn func(id string, raw []byte) error) error {
	return s.View(ctx, func(tx *Tx) error {
		prefix := []byte(docPrefix(collection))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error { return fn(id, val) }); err != nil {
				return err
			}
		}
		return nil
	})
}

// gcDiscardRatio is the share of stale data a value log file needs before
// it is rewritten.
const gcDiscardRatio = 0.5

// RunGC reclaims value log space until badger reports nothing left to rewrite.
func (s *Store) RunGC() error {
	for {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}
