// Package loom provides an embeddable graph-shaped storage engine for
// personal knowledge graphs: content nodes, typed edges between them,
// per-origin indexes and activity bookkeeping, persisted over a primitive
// bulk key-value substrate.
package loom

import (
	"context"
	"fmt"

	"github.com/loomdb/loom/pkg/core"
	"github.com/loomdb/loom/pkg/kv"
)

// Backend selects the key-value substrate the engine persists into
type Backend string

const (
	// BackendSQLite stores records in a single SQLite database file
	BackendSQLite Backend = "sqlite"
	// BackendBadger stores records in a Badger directory
	BackendBadger Backend = "badger"
	// BackendMemory keeps records in process memory, for tests and
	// ephemeral engines
	BackendMemory Backend = "memory"
)

// DB represents one open graph engine instance
type DB struct {
	substrate    kv.Store
	logger       core.Logger
	records      *core.RecordStore
	nodes        *core.NodeStore
	edges        *core.EdgeStore
	associations *core.AssociationStore
	activity     *core.ActivityStore
	ingest       *core.IngestStore
	account      *core.AccountStore
}

// Config represents engine configuration
type Config struct {
	Path    string      // Database file or directory path
	Backend Backend     // Substrate to persist into (default: SQLite)
	Logger  core.Logger // Logger (default: no logging)
}

// DefaultConfig returns default configuration
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Backend: BackendSQLite,
	}
}

// Option is a functional option for configuring Open.
type Option func(*openOptions)

type openOptions struct {
	substrate kv.Store
	observers []core.Observer
}

// WithSubstrate runs the engine over a caller-provided substrate. Path and
// Backend in the config are ignored. The engine takes ownership and closes
// the substrate on Close.
func WithSubstrate(s kv.Store) Option {
	return func(o *openOptions) {
		o.substrate = s
	}
}

// WithObserver registers an observer for node lifecycle events before the
// engine accepts its first operation.
func WithObserver(fn core.Observer) Option {
	return func(o *openOptions) {
		o.observers = append(o.observers, fn)
	}
}

// Open opens or creates a graph engine over the configured substrate.
// Additional options can be passed, such as WithSubstrate.
func Open(config Config, opts ...Option) (*DB, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	db := &DB{substrate: o.substrate, logger: config.Logger}
	if db.logger == nil {
		db.logger = core.NopLogger()
	}
	if db.substrate == nil {
		substrate, err := openSubstrate(config)
		if err != nil {
			return nil, err
		}
		db.substrate = substrate
	}

	db.records = core.NewRecordStore(db.substrate, db.logger)
	db.nodes = core.NewNodeStore(db.records, db.logger)
	db.edges = core.NewEdgeStore(db.records, db.logger)
	db.associations = core.NewAssociationStore(db.records, db.logger)
	db.activity = core.NewActivityStore(db.records)
	db.ingest = core.NewIngestStore(db.records)
	db.account = core.NewAccountStore(db.records)

	for _, fn := range o.observers {
		db.nodes.Subscribe(fn)
	}

	db.logger.Info("engine opened", "backend", string(config.Backend), "path", config.Path)
	return db, nil
}

func openSubstrate(config Config) (kv.Store, error) {
	switch config.Backend {
	case BackendSQLite, "":
		store, err := kv.OpenSQLite(config.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite substrate: %w", err)
		}
		return store, nil
	case BackendBadger:
		store, err := kv.OpenBadger(config.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger substrate: %w", err)
		}
		return store, nil
	case BackendMemory:
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", config.Backend)
	}
}

// Nodes returns the node repository
func (db *DB) Nodes() *core.NodeStore {
	return db.nodes
}

// Edges returns the edge repository
func (db *DB) Edges() *core.EdgeStore {
	return db.edges
}

// Associations returns the origin association manager
func (db *DB) Associations() *core.AssociationStore {
	return db.associations
}

// Activity returns the per-origin activity tracker
func (db *DB) Activity() *core.ActivityStore {
	return db.activity
}

// Ingestion returns the pipeline watermark tracker
func (db *DB) Ingestion() *core.IngestStore {
	return db.ingest
}

// Account returns the account blob store
func (db *DB) Account() *core.AccountStore {
	return db.account
}

// Records returns the typed record store underneath the repositories, for
// callers that need raw record access.
func (db *DB) Records() *core.RecordStore {
	return db.records
}

// Close closes the engine and its substrate
func (db *DB) Close() error {
	return db.records.Close()
}

// Quick is a simplified interface for common operations
type Quick struct {
	db *DB
}

// Quick creates a simple interface for quick operations
func (db *DB) Quick() *Quick {
	return &Quick{db: db}
}

// Add stores a text node with an automatically generated id
func (q *Quick) Add(ctx context.Context, nodeType, text string) (string, error) {
	node, err := q.db.nodes.Create(ctx, core.NodeDraft{Type: nodeType, Text: text})
	if err != nil {
		return "", err
	}
	return node.ID, nil
}

// Get returns a node by id
func (q *Quick) Get(ctx context.Context, id string) (*core.Node, error) {
	return q.db.nodes.Get(ctx, id)
}

// Link connects two nodes and returns the edge id
func (q *Quick) Link(ctx context.Context, from, to string) (string, error) {
	edge, err := q.db.edges.Create(ctx, from, to)
	if err != nil {
		return "", err
	}
	return edge.ID, nil
}
