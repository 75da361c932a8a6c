// Package kv defines the primitive key-value substrate the graph engine
// persists into: bulk get, set, and delete of opaque records addressed by
// string keys. The substrate knows nothing about record shapes, offers no
// queries and no secondary indexes, and only MAY apply a bulk set
// atomically; callers that need multi-record consistency must build it
// themselves on top.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned when an operation is attempted on a closed store
var ErrClosed = errors.New("kv: store is closed")

// Store is the substrate contract. All three methods accept empty input and
// return immediately. Get returns only the keys that exist; a missing key is
// silently absent from the result, never an error. Delete of an absent key
// is a no-op. Values are opaque bytes.
type Store interface {
	// Get returns the stored values for the given keys, omitting keys that
	// do not exist.
	Get(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set writes all given records. Implementations may apply the batch
	// atomically but callers must not rely on it.
	Set(ctx context.Context, records map[string][]byte) error

	// Delete removes the given keys, ignoring keys that do not exist.
	Delete(ctx context.Context, keys []string) error

	// Close releases underlying resources. Close is idempotent.
	Close() error
}
