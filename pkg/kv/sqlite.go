package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// chunkSize bounds the number of placeholders in a single IN clause
const chunkSize = 500

// SQLite is a Store backed by a single SQLite table. Every Set and Delete
// runs inside one transaction, so batches are applied atomically.
type SQLite struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// OpenSQLite opens or creates a SQLite-backed store at the given path
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("kv: empty database path")
	}

	// _journal_mode=WAL: Better concurrency
	// _synchronous=NORMAL: Good balance of safety and speed
	// _busy_timeout=5000: Wait up to 5s for lock instead of failing immediately
	// _cache_size=-2000: Use 2MB of memory for cache (negative value = kb)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Get returns the stored values for the given keys, omitting missing keys
func (s *SQLite) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	found := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	for i := 0; i < len(keys); i += chunkSize {
		end := i + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]

		placeholders := strings.Repeat("?,", len(chunk)-1) + "?"
		query := fmt.Sprintf("SELECT key, value FROM records WHERE key IN (%s)", placeholders)

		args := make([]any, len(chunk))
		for j, key := range chunk {
			args[j] = key
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query records: %w", err)
		}

		for rows.Next() {
			var key string
			var value []byte
			if err := rows.Scan(&key, &value); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan record: %w", err)
			}
			found[key] = value
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close rows: %w", err)
		}
	}

	return found, nil
}

// Set writes all given records inside a single transaction
func (s *SQLite) Set(ctx context.Context, records map[string][]byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a harmless no-op.
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO records (key, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for key, value := range records {
		if _, err := stmt.ExecContext(ctx, key, value); err != nil {
			return fmt.Errorf("failed to write record %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes the given keys inside a single transaction
func (s *SQLite) Delete(ctx context.Context, keys []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < len(keys); i += chunkSize {
		end := i + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		chunk := keys[i:end]

		placeholders := strings.Repeat("?,", len(chunk)-1) + "?"
		query := fmt.Sprintf("DELETE FROM records WHERE key IN (%s)", placeholders)

		args := make([]any, len(chunk))
		for j, key := range chunk {
			args[j] = key
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete records: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection. Close is idempotent.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
