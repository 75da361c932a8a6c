package kv

import (
	"context"
	"sync"
)

// Memory is an in-memory Store backed by a plain map. It is safe for
// concurrent use and applies every Set atomically. Intended for tests and
// ephemeral engines; nothing survives process exit.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	closed  bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte)}
}

// Get returns the stored values for the given keys, omitting missing keys
func (m *Memory) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	found := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, ok := m.records[key]
		if !ok {
			continue
		}
		// Copy out so callers cannot mutate stored state.
		found[key] = append([]byte(nil), value...)
	}

	return found, nil
}

// Set writes all given records in one atomic step
func (m *Memory) Set(ctx context.Context, records map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for key, value := range records {
		m.records[key] = append([]byte(nil), value...)
	}

	return nil
}

// Delete removes the given keys, ignoring keys that do not exist
func (m *Memory) Delete(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for _, key := range keys {
		delete(m.records, key)
	}

	return nil
}

// Close marks the store closed and drops its contents
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.records = nil

	return nil
}
