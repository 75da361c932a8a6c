package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB. Every Set and Delete runs inside one
// Update transaction, so batches are applied atomically.
type Badger struct {
	mu     sync.RWMutex
	db     *badger.DB
	closed bool
}

// OpenBadger opens or creates a Badger-backed store in the given directory.
// An empty directory selects Badger's in-memory mode, which keeps the
// persistent-store semantics without touching disk.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	// Badger's own logging is chatty; the engine logs at its layer.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

// Get returns the stored values for the given keys, omitting missing keys
func (b *Badger) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	found := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	err := b.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read %q: %w", key, err)
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to copy value of %q: %w", key, err)
			}
			found[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// Set writes all given records inside a single transaction
func (b *Badger) Set(ctx context.Context, records map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for key, value := range records {
			if err := txn.Set([]byte(key), value); err != nil {
				return fmt.Errorf("failed to write %q: %w", key, err)
			}
		}
		return nil
	})
}

// Delete removes the given keys inside a single transaction
func (b *Badger) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return fmt.Errorf("failed to delete %q: %w", key, err)
			}
		}
		return nil
	})
}

// Close closes the underlying database. Close is idempotent.
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger: %w", err)
	}

	return nil
}
