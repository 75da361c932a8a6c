package core

import (
	"context"
	"testing"
)

func TestSubscribeReceivesLifecycleEvents(t *testing.T) {
	nodes, _ := newTestNodes(t)
	ctx := context.Background()

	var events []Event
	cancel := nodes.Subscribe(func(ev Event) {
		events = append(events, ev)
	})
	defer cancel()

	n, err := nodes.Create(ctx, NodeDraft{Type: "note", Text: "hello"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	text := "changed"
	if _, err := nodes.Update(ctx, NodeUpdate{ID: n.ID, Text: &text}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := nodes.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []EventType{EventNodeCreated, EventNodeUpdated, EventNodeDeleting}
	if len(events) != len(want) {
		t.Fatalf("received %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("events[%d].Type = %s, want %s", i, ev.Type, want[i])
		}
		if ev.Node == nil || ev.Node.ID != n.ID {
			t.Errorf("events[%d].Node = %+v, want node %s", i, ev.Node, n.ID)
		}
	}
	if events[1].Node.Text != "changed" {
		t.Errorf("update event text = %q, want %q", events[1].Node.Text, "changed")
	}
}

func TestDeletingEventFiresBeforeRemoval(t *testing.T) {
	nodes, _ := newTestNodes(t)
	ctx := context.Background()

	n, err := nodes.Create(ctx, NodeDraft{Type: "note"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var sawStored bool
	cancel := nodes.Subscribe(func(ev Event) {
		if ev.Type != EventNodeDeleting {
			return
		}
		// the record is still readable while the event is delivered
		if _, err := nodes.Get(ctx, ev.Node.ID); err == nil {
			sawStored = true
		}
	})
	defer cancel()

	if err := nodes.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !sawStored {
		t.Error("deleting observer could not read the node before removal")
	}
}

func TestSubscribeCancel(t *testing.T) {
	nodes, _ := newTestNodes(t)
	ctx := context.Background()

	var count int
	cancel := nodes.Subscribe(func(Event) { count++ })

	if _, err := nodes.Create(ctx, NodeDraft{Type: "note"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	cancel()
	cancel() // repeat cancellation is harmless
	if _, err := nodes.Create(ctx, NodeDraft{Type: "note"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if count != 1 {
		t.Errorf("observer ran %d times, want 1", count)
	}
}

func TestSubscribeMultipleObservers(t *testing.T) {
	nodes, _ := newTestNodes(t)
	ctx := context.Background()

	var first, second int
	c1 := nodes.Subscribe(func(Event) { first++ })
	defer c1()
	c2 := nodes.Subscribe(func(Event) { second++ })
	defer c2()

	if _, err := nodes.Create(ctx, NodeDraft{Type: "note"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first != 1 || second != 1 {
		t.Errorf("observers ran %d and %d times, want 1 and 1", first, second)
	}
}
