package core

import "sync"

// EventType names a node lifecycle transition
type EventType string

const (
	// EventNodeCreated fires after a node and its edges are committed
	EventNodeCreated EventType = "node-created"
	// EventNodeUpdated fires after an updated node record is committed
	EventNodeUpdated EventType = "node-updated"
	// EventNodeDeleting fires before a node's records are removed, while
	// the node can still be read
	EventNodeDeleting EventType = "node-deleting"
)

// Event is one node lifecycle notification
type Event struct {
	Type EventType
	Node *Node
}

// Observer receives node lifecycle events. Observers run synchronously on
// the goroutine performing the store operation and should return quickly.
type Observer func(Event)

// notifier fans node lifecycle events out to registered observers
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]Observer
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]Observer)}
}

// subscribe registers fn and returns its cancel function. Cancelling twice
// is harmless. Delivery order across observers is unspecified.
func (n *notifier) subscribe(fn Observer) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// publish delivers ev to every observer registered at the time of the
// call. Observers are invoked outside the lock, so one may subscribe or
// cancel from inside its callback.
func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	observers := make([]Observer, 0, len(n.subs))
	for _, fn := range n.subs {
		observers = append(observers, fn)
	}
	n.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}
