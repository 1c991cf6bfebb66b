package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// validator is implemented by domain entities that check themselves after decoding.
type validator interface {
	Validate() error
}

// Collection provides typed document storage for T with secondary indexes.
type Collection[T any] struct {
	store   *Store
	name    string
	idOf    func(*T) string
	indexes []index[T]
}

type index[T any] struct {
	name   string
	unique bool
	keyOf  func(*T) string
}

// NewCollection creates a collection named name whose document ids come from idOf.
func NewCollection[T any](s *Store, name string, idOf func(*T) string) *Collection[T] {
	return &Collection[T]{store: s, name: name, idOf: idOf}
}

// WithIndex adds a non-unique secondary index. Empty keys are not indexed.
func (c *Collection[T]) WithIndex(name string, keyOf func(*T) string) *Collection[T] {
	c.indexes = append(c.indexes, index[T]{name: name, keyOf: keyOf})
	return c
}

// WithUniqueIndex adds a secondary index that rejects duplicate keys with ErrAlreadyExists.
func (c *Collection[T]) WithUniqueIndex(name string, keyOf func(*T) string) *Collection[T] {
	c.indexes = append(c.indexes, index[T]{name: name, keyOf: keyOf, unique: true})
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func docPrefix(collection string) string {
	return collection + ":"
}

func (c *Collection[T]) docKey(id string) []byte {
	return []byte(docPrefix(c.name) + keyEscaper.Replace(id))
}

func (c *Collection[T]) indexPrefix(idx, value string) []byte {
	return []byte("idx:" + c.name + ":" + idx + ":" + keyEscaper.Replace(value) + ":")
}

func (c *Collection[T]) uniqueKey(idx, value string) []byte {
	return []byte("uniq:" + c.name + ":" + idx + ":" + keyEscaper.Replace(value))
}

func (c *Collection[T]) findIndex(name string) (index[T], error) {
	for _, idx := range c.indexes {
		if idx.name == name {
			return idx, nil
		}
	}
	return index[T]{}, fmt.Errorf("collection %s has no index %q", c.name, name)
}

func (c *Collection[T]) decode(raw []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrCorrupt.WithCause(fmt.Errorf("%s: %w", c.name, err))
	}
	if v, ok := any(&doc).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, ErrCorrupt.WithCause(fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return &doc, nil
}

// GetTx loads a document by id. Returns ErrNotFound if absent.
func (c *Collection[T]) GetTx(tx *Tx, id string) (*T, error) {
	item, err := tx.txn.Get(c.docKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.name, id, err)
	}
	var doc *T
	err = item.Value(func(val []byte) error {
		var derr error
		doc, derr = c.decode(val)
		return derr
	})
	return doc, err
}

// InsertTx writes a new document. Returns ErrAlreadyExists if the id or a
// unique index key is taken.
func (c *Collection[T]) InsertTx(tx *Tx, doc *T) error {
	id := c.idOf(doc)
	if id == "" {
		return fmt.Errorf("insert %s: empty id", c.name)
	}
	if v, ok := any(doc).(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	if _, err := tx.txn.Get(c.docKey(id)); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("check existing %s: %w", c.name, err)
	}

	if err := c.checkUnique(tx, doc, nil); err != nil {
		return err
	}
	return c.write(tx, id, doc)
}

func (c *Collection[T]) insertRawTx(tx *Tx, raw []byte) error {
	doc, err := c.decode(raw)
	if err != nil {
		return err
	}
	return c.InsertTx(tx, doc)
}

// ReplaceTx overwrites an existing document and moves its index entries.
// Returns ErrNotFound if the document does not exist.
func (c *Collection[T]) ReplaceTx(tx *Tx, doc *T) error {
	id := c.idOf(doc)
	if v, ok := any(doc).(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	old, err := c.GetTx(tx, id)
	if err != nil {
		return err
	}
	if err := c.checkUnique(tx, doc, old); err != nil {
		return err
	}
	if err := c.unindex(tx, id, old); err != nil {
		return err
	}
	return c.write(tx, id, doc)
}

// DeleteTx removes a document and its index entries. Deleting a missing
// document is not an error.
func (c *Collection[T]) DeleteTx(tx *Tx, id string) error {
	old, err := c.GetTx(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.unindex(tx, id, old); err != nil {
		return err
	}
	return tx.txn.Delete(c.docKey(id))
}

// FindTx returns every document whose index key equals value, in id order.
func (c *Collection[T]) FindTx(tx *Tx, indexName, value string) ([]*T, error) {
	idx, err := c.findIndex(indexName)
	if err != nil {
		return nil, err
	}
	if idx.unique {
		doc, err := c.FindOneTx(tx, indexName, value)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*T{doc}, nil
	}

	prefix := c.indexPrefix(indexName, value)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	var ids []string
	it := tx.txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	it.Close()

	docs := make([]*T, 0, len(ids))
	for _, escapedID := range ids {
		item, err := tx.txn.Get([]byte(docPrefix(c.name) + escapedID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", c.name, err)
		}
		var doc *T
		if err := item.Value(func(val []byte) error {
			var derr error
			doc, derr = c.decode(val)
			return derr
		}); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindOneTx resolves a unique index key to its document.
func (c *Collection[T]) FindOneTx(tx *Tx, indexName, value string) (*T, error) {
	idx, err := c.findIndex(indexName)
	if err != nil {
		return nil, err
	}
	if !idx.unique {
		return nil, fmt.Errorf("index %s.%s is not unique", c.name, indexName)
	}
	item, err := tx.txn.Get(c.uniqueKey(indexName, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s.%s: %w", c.name, indexName, err)
	}
	var id string
	if err := item.Value(func(val []byte) error {
		id = string(val)
		return nil
	}); err != nil {
		return nil, err
	}
	return c.GetTx(tx, id)
}

func (c *Collection[T]) checkUnique(tx *Tx, doc, old *T) error {
	for _, idx := range c.indexes {
		if !idx.unique {
			continue
		}
		key := idx.keyOf(doc)
		if key == "" || (old != nil && idx.keyOf(old) == key) {
			continue
		}
		_, err := tx.txn.Get(c.uniqueKey(idx.name, key))
		if err == nil {
			return fmt.Errorf("%s.%s %q: %w", c.name, idx.name, key, ErrAlreadyExists)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check index %s.%s: %w", c.name, idx.name, err)
		}
	}
	return nil
}

func (c *Collection[T]) write(tx *Tx, id string, doc *T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.name, err)
	}
	if err := tx.txn.Set(c.docKey(id), data); err != nil {
		return fmt.Errorf("set %s: %w", c.name, err)
	}
	for _, idx := range c.indexes {
		key := idx.keyOf(doc)
		if key == "" {
			continue
		}
		if idx.unique {
			err = tx.txn.Set(c.uniqueKey(idx.name, key), []byte(id))
		} else {
			err = tx.txn.Set(append(c.indexPrefix(idx.name, key), keyEscaper.Replace(id)...), nil)
		}
		if err != nil {
			return fmt.Errorf("set index %s.%s: %w", c.name, idx.name, err)
		}
	}
	return nil
}

func (c *Collection[T]) unindex(tx *Tx, id string, old *T) error {
	for _, idx := range c.indexes {
		key := idx.keyOf(old)
		if key == "" {
			continue
		}
		var err error
		if idx.unique {
			err = tx.txn.Delete(c.uniqueKey(idx.name, key))
		} else {
			err = tx.txn.Delete(append(c.indexPrefix(idx.name, key), keyEscaper.Replace(id)...))
		}
		if err != nil {
			return fmt.Errorf("delete index %s.%s: %w", c.name, idx.name, err)
		}
	}
	return nil
}

// Get loads a document by id.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var doc *T
	err := c.store.View(ctx, func(tx *Tx) error {
		var err error
		doc, err = c.GetTx(tx, id)
		return err
	})
	return doc, err
}

// Insert writes a new document in its own transaction.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	return c.store.Update(ctx, func(tx *Tx) error { return c.InsertTx(tx, doc) })
}

// Replace overwrites an existing document in its own transaction.
func (c *Collection[T]) Replace(ctx context.Context, doc *T) error {
	return c.store.Update(ctx, func(tx *Tx) error { return c.ReplaceTx(tx, doc) })
}

// Delete removes a document in its own transaction.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Update(ctx, func(tx *Tx) error { return c.DeleteTx(tx, id) })
}

// Find returns every document whose index key equals value.
func (c *Collection[T]) Find(ctx context.Context, indexName, value string) ([]*T, error) {
	var docs []*T
	err := c.store.View(ctx, func(tx *Tx) error {
		var err error
		docs, err = c.FindTx(tx, indexName, value)
		return err
	})
	return docs, err
}

// FindOne resolves a unique index key.
func (c *Collection[T]) FindOne(ctx context.Context, indexName, value string) (*T, error) {
	var doc *T
	err := c.store.View(ctx, func(tx *Tx) error {
		var err error
		doc, err = c.FindOneTx(tx, indexName, value)
		return err
	})
	return doc, err
}

// All returns an iterator over every document in the collection.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		_ = c.store.View(ctx, func(tx *Tx) error {
			prefix := []byte(docPrefix(c.name))
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := tx.txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return err
				}
				var doc *T
				err := it.Item().Value(func(val []byte) error {
					var derr error
					doc, derr = c.decode(val)
					return derr
				})
				if !yield(doc, err) || err != nil {
					return nil
				}
			}
			return nil
		})
	}
}

// MutateTx loads a document, applies fn and writes the result back.
// If fn returns an error nothing is written.
func (c *Collection[T]) MutateTx(tx *Tx, id string, fn func(*T) error) (*T, error) {
	doc, err := c.GetTx(tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if c.idOf(doc) != id {
		return nil, fmt.Errorf("mutate %s: id changed from %s", c.name, id)
	}
	if err := c.ReplaceTx(tx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Mutate is MutateTx in its own transaction. Concurrent mutations of the
// same document are serialized: the loser gets ErrConflict.
func (c *Collection[T]) Mutate(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	var doc *T
	err := c.store.Update(ctx, func(tx *Tx) error {
		var err error
		doc, err = c.MutateTx(tx, id, fn)
		return err
	})
	return doc, err
}
