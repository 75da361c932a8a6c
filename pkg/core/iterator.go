package core

import (
	"context"
	"errors"
)

// NodeIterator walks the node listing as it stood when the iterator was
// built, newest first. The snapshot is not live: nodes created after
// construction never appear, and ids whose record has since vanished are
// skipped.
type NodeIterator struct {
	store *NodeStore
	ids   []string
	pos   int
	done  bool
}

// Iterate snapshots the current node listing and returns an iterator over
// it, most recently created first
func (s *NodeStore) Iterate(ctx context.Context) (*NodeIterator, error) {
	ids, err := s.GetAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	return &NodeIterator{store: s, ids: ids}, nil
}

// Next loads the node at the current position and advances. Once the
// snapshot is exhausted or the iterator aborted, every call returns
// ErrIteratorDone.
func (it *NodeIterator) Next(ctx context.Context) (*Node, error) {
	for !it.done && it.pos < len(it.ids) {
		id := it.ids[it.pos]
		it.pos++

		node, err := it.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		return node, nil
	}
	it.done = true
	return nil, ErrIteratorDone
}

// Abort ends the iteration immediately. Aborting an exhausted iterator has
// no effect.
func (it *NodeIterator) Abort() {
	it.done = true
}
