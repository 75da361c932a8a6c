package loom

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomdb/loom/pkg/core"
	"github.com/loomdb/loom/pkg/kv"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("graph.db")

	if config.Path != "graph.db" {
		t.Errorf("Path = %q, want %q", config.Path, "graph.db")
	}
	if config.Backend != BackendSQLite {
		t.Errorf("Backend = %q, want %q", config.Backend, BackendSQLite)
	}
}

func TestOpenMemory(t *testing.T) {
	db, err := Open(Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Nodes() == nil || db.Edges() == nil || db.Associations() == nil {
		t.Error("node, edge or association surface is nil")
	}
	if db.Activity() == nil || db.Ingestion() == nil || db.Account() == nil {
		t.Error("activity, ingestion or account surface is nil")
	}
	if db.Records() == nil {
		t.Error("record surface is nil")
	}

	ctx := context.Background()
	id, err := db.Quick().Add(ctx, "note", "hello")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	node, err := db.Quick().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if node.Text != "hello" {
		t.Errorf("Text = %q, want %q", node.Text, "hello")
	}
}

func TestOpenSQLitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	ctx := context.Background()

	db, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, err := db.Quick().Add(ctx, "note", "persisted")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	node, err := db.Quick().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if node.Text != "persisted" {
		t.Errorf("Text = %q, want %q", node.Text, "persisted")
	}
}

func TestOpenBadgerPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	config := Config{Path: dir, Backend: BackendBadger}

	db, err := Open(config)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	id, err := db.Quick().Add(ctx, "note", "persisted")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = Open(config)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	node, err := db.Quick().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if node.Text != "persisted" {
		t.Errorf("Text = %q, want %q", node.Text, "persisted")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Config{Backend: Backend("tape")}); err == nil {
		t.Error("Open() with unknown backend succeeded")
	}
}

func TestWithSubstrate(t *testing.T) {
	substrate := kv.NewMemory()
	db, err := Open(Config{}, WithSubstrate(substrate))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ctx := context.Background()
	if _, err := db.Quick().Add(ctx, "note", "hello"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Close owns the substrate too
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := substrate.Set(ctx, map[string][]byte{"k": []byte("v")}); !errors.Is(err, kv.ErrClosed) {
		t.Errorf("substrate Set() after engine close error = %v, want ErrClosed", err)
	}
}

func TestWithObserver(t *testing.T) {
	var events []core.Event
	db, err := Open(Config{Backend: BackendMemory}, WithObserver(func(ev core.Event) {
		events = append(events, ev)
	}))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Quick().Add(context.Background(), "note", "hello"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != core.EventNodeCreated {
		t.Errorf("events = %+v, want one created event", events)
	}
}

func TestQuickLink(t *testing.T) {
	db, err := Open(Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	quick := db.Quick()
	from, err := quick.Add(ctx, "note", "from")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	to, err := quick.Add(ctx, "note", "to")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := quick.Link(ctx, from, to); err != nil {
		t.Fatalf("Link() error = %v", err)
	}

	all, err := db.Edges().GetAll(ctx, from)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all.Outgoing) != 1 || all.Outgoing[0].To != to {
		t.Errorf("Outgoing = %+v, want one edge to %s", all.Outgoing, to)
	}
}

func TestBlobOperationsUnsupported(t *testing.T) {
	db, err := Open(Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.UploadBlob(ctx, "n1", []byte("bytes")); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("UploadBlob() error = %v, want ErrUnsupported", err)
	}
	if err := db.IndexBlobs(ctx); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("IndexBlobs() error = %v, want ErrUnsupported", err)
	}
	if err := db.UploadBlob(ctx, "n1", nil); err != nil && !strings.Contains(err.Error(), "blob") {
		t.Errorf("UploadBlob() error %q does not describe the missing capability", err)
	}
}
