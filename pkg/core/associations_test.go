package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestAssociations(t *testing.T) (*AssociationStore, *NodeStore, *RecordStore) {
	t.Helper()

	rs := newTestStore(t)
	return NewAssociationStore(rs, NopLogger()), NewNodeStore(rs, NopLogger()), rs
}

func TestAssociationSymmetry(t *testing.T) {
	assoc, nodes, _ := newTestAssociations(t)
	ctx := context.Background()

	a1, err := nodes.Create(ctx, NodeDraft{Type: "note", Origin: "site-a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	a2, err := nodes.Create(ctx, NodeDraft{Type: "note", Origin: "site-a"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b1, err := nodes.Create(ctx, NodeDraft{Type: "note", Origin: "site-b"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := assoc.Record(ctx, "site-a", "site-b", "related"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	fromView, err := assoc.Get(ctx, "site-a")
	if err != nil {
		t.Fatalf("Get(site-a) error = %v", err)
	}
	if len(fromView.NodeIDs) != 2 || fromView.NodeIDs[0] != a1.ID || fromView.NodeIDs[1] != a2.ID {
		t.Errorf("site-a NodeIDs = %v, want [%s %s]", fromView.NodeIDs, a1.ID, a2.ID)
	}
	if len(fromView.From) != 0 {
		t.Errorf("site-a From = %+v, want empty", fromView.From)
	}
	if len(fromView.To) != 1 {
		t.Fatalf("site-a To has %d sides, want 1", len(fromView.To))
	}
	side := fromView.To[0]
	if side.Origin != "site-b" || side.Type != "related" {
		t.Errorf("side = %+v, want site-b/related", side)
	}
	if len(side.NodeIDs) != 1 || side.NodeIDs[0] != b1.ID {
		t.Errorf("side.NodeIDs = %v, want [%s]", side.NodeIDs, b1.ID)
	}

	toView, err := assoc.Get(ctx, "site-b")
	if err != nil {
		t.Fatalf("Get(site-b) error = %v", err)
	}
	if len(toView.From) != 1 || toView.From[0].Origin != "site-a" {
		t.Fatalf("site-b From = %+v, want one side from site-a", toView.From)
	}
	if len(toView.To) != 0 {
		t.Errorf("site-b To = %+v, want empty", toView.To)
	}
	if len(toView.From[0].NodeIDs) != 2 {
		t.Errorf("site-b sees %d node ids for site-a, want 2", len(toView.From[0].NodeIDs))
	}
}

func TestAssociationDuplicateIsSuccess(t *testing.T) {
	assoc, _, _ := newTestAssociations(t)
	ctx := context.Background()

	if err := assoc.Record(ctx, "a", "b", "related"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := assoc.Record(ctx, "a", "b", "related"); err != nil {
		t.Errorf("repeated Record() error = %v, want nil", err)
	}
	// the reversed call describes the same association
	if err := assoc.Record(ctx, "b", "a", "related"); err != nil {
		t.Errorf("reversed Record() error = %v, want nil", err)
	}

	view, err := assoc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(view.To) != 1 || len(view.From) != 0 {
		t.Errorf("view = %+v, want exactly one to-side", view)
	}
}

func TestAssociationOneSidedIsFatal(t *testing.T) {
	assoc, _, rs := newTestAssociations(t)
	ctx := context.Background()

	// plant a half-written association: left knows right, right does
	// not know left
	err := rs.Put(ctx, []Record{{
		Key:   AssociationListKey("left.example"),
		Value: AssociationList{{Origin: "right.example", Direction: DirectionTo, Type: "related"}},
	}})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for _, pair := range [][2]string{{"left.example", "right.example"}, {"right.example", "left.example"}} {
		err := assoc.Record(ctx, pair[0], pair[1], "related")
		if !errors.Is(err, ErrConsistency) {
			t.Errorf("Record(%s, %s) error = %v, want ErrConsistency", pair[0], pair[1], err)
		}
		if err != nil && (!strings.Contains(err.Error(), "left.example") || !strings.Contains(err.Error(), "right.example")) {
			t.Errorf("Record(%s, %s) error %q does not name both origins", pair[0], pair[1], err)
		}
	}
}

func TestAssociationSelf(t *testing.T) {
	assoc, _, _ := newTestAssociations(t)
	ctx := context.Background()

	if err := assoc.Record(ctx, "o", "o", "self"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	view, err := assoc.Get(ctx, "o")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(view.To) != 1 || view.To[0].Origin != "o" {
		t.Errorf("To = %+v, want one self side", view.To)
	}
	if len(view.From) != 1 || view.From[0].Origin != "o" {
		t.Errorf("From = %+v, want one self side", view.From)
	}

	if err := assoc.Record(ctx, "o", "o", "self"); err != nil {
		t.Errorf("repeated self Record() error = %v, want nil", err)
	}
}

func TestAssociationUnknownOrigin(t *testing.T) {
	assoc, _, _ := newTestAssociations(t)

	view, err := assoc.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.Origin != "nobody" {
		t.Errorf("Origin = %q, want %q", view.Origin, "nobody")
	}
	if len(view.NodeIDs) != 0 || len(view.From) != 0 || len(view.To) != 0 {
		t.Errorf("Get(nobody) = %+v, want empty view", view)
	}
}

func TestAssociationValidation(t *testing.T) {
	assoc, _, _ := newTestAssociations(t)
	ctx := context.Background()

	if err := assoc.Record(ctx, "", "b", "t"); err == nil {
		t.Error("Record() with empty from succeeded")
	}
	if err := assoc.Record(ctx, "a", "", "t"); err == nil {
		t.Error("Record() with empty to succeeded")
	}
	if _, err := assoc.Get(ctx, ""); err == nil {
		t.Error("Get() with empty origin succeeded")
	}
}
