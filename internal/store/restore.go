package store

import (
	"context"
	"fmt"
)

// Restore inserts one raw document into a collection, rebuilding its index
// entries. An existing id or unique key returns ErrAlreadyExists.
func (s *Store) Restore(ctx context.Context, collection string, raw []byte) error {
	load, ok := s.loaders[collection]
	if !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	return s.Update(ctx, func(tx *Tx) error {
		return load(tx, raw)
	})
}

// Reset deletes every document and index entry.
func (s *Store) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	if s.logger != nil {
		s.logger.Warn("Store reset, all documents deleted")
	}
	return nil
}
