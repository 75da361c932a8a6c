package core

import (
	"context"
	"fmt"
)

// Batch accumulates record writes and removals and commits them in at most
// two substrate calls: one bulk removal, then one bulk write. Everything
// in the write call lands together, so a batch is the closest thing to a
// transaction the substrate offers.
//
// Append and RemoveMatching observe the batch's own pending state before
// reading the substrate: an append to a key the batch already proposes
// extends the proposal, and a matched removal against a key the batch
// already removes is a no-op. A batch is not safe for concurrent use.
type Batch struct {
	rs       *RecordStore
	puts     map[string]Record
	removals map[string]Key
}

// NewBatch starts an empty batch against the store
func (s *RecordStore) NewBatch() *Batch {
	return &Batch{
		rs:       s,
		puts:     make(map[string]Record),
		removals: make(map[string]Key),
	}
}

// Put stages a record write. A later Put for the same key replaces the
// earlier one, and a Put cancels a pending removal of the key.
func (b *Batch) Put(key Key, v Value) error {
	if v == nil {
		return wrapError("batch", fmt.Errorf("key %q carries no payload", key.String()))
	}
	if v.Kind() != key.Kind() {
		return wrapError("batch", fmt.Errorf("key %q holds %q records, got %q: %w",
			key.String(), key.Kind(), v.Kind(), ErrKindMismatch))
	}
	ks := key.String()
	delete(b.removals, ks)
	b.puts[ks] = Record{Key: key, Value: v}
	return nil
}

// Remove stages a record removal, cancelling any pending write of the key
func (b *Batch) Remove(key Key) {
	ks := key.String()
	delete(b.puts, ks)
	b.removals[ks] = key
}

// Append stages an append to the list record under key. A pending write of
// the key is extended in place; a pending removal means the list starts
// empty again; otherwise the current record is read from the store.
func (b *Batch) Append(ctx context.Context, key Key, elem any) error {
	ks := key.String()

	if pending, ok := b.puts[ks]; ok {
		next, err := appendValue(key, pending.Value, elem)
		if err != nil {
			return wrapError("batch", err)
		}
		b.puts[ks] = Record{Key: key, Value: next}
		return nil
	}

	if _, gone := b.removals[ks]; gone {
		base, ok := emptyValue(key.Kind())
		if !ok {
			return wrapError("batch", fmt.Errorf("kind %q does not hold a list: %w", key.Kind(), ErrKindMismatch))
		}
		next, err := appendValue(key, base, elem)
		if err != nil {
			return wrapError("batch", err)
		}
		delete(b.removals, ks)
		b.puts[ks] = Record{Key: key, Value: next}
		return nil
	}

	rec, err := b.rs.PrepareAppend(ctx, key, elem)
	if err != nil {
		return err
	}
	b.puts[ks] = rec
	return nil
}

// RemoveMatching stages the removal of every entry selected by m from the
// list record under key. A key the batch already removes is left alone,
// and a record with no matching entries is not rewritten.
func (b *Batch) RemoveMatching(ctx context.Context, key Key, m Match) error {
	ks := key.String()

	if _, gone := b.removals[ks]; gone {
		return nil
	}

	if pending, ok := b.puts[ks]; ok {
		next, matched, err := removeMatching(key, pending.Value, m)
		if err != nil {
			return wrapError("batch", err)
		}
		if matched {
			b.puts[ks] = Record{Key: key, Value: next}
		}
		return nil
	}

	rec, matched, err := b.rs.PrepareRemoval(ctx, key, m)
	if err != nil {
		return err
	}
	if matched {
		b.puts[ks] = rec
	}
	return nil
}

// Len reports the number of staged writes and removals
func (b *Batch) Len() int {
	return len(b.puts) + len(b.removals)
}

// Commit applies the batch: one bulk removal, then one bulk write. If the
// write fails after the removal succeeded the batch is partially applied;
// the substrate offers nothing stronger. A committed batch must not be
// reused.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.removals) > 0 {
		keys := make([]Key, 0, len(b.removals))
		for _, k := range b.removals {
			keys = append(keys, k)
		}
		if err := b.rs.Remove(ctx, keys); err != nil {
			return err
		}
	}

	if len(b.puts) > 0 {
		records := make([]Record, 0, len(b.puts))
		for _, r := range b.puts {
			records = append(records, r)
		}
		if err := b.rs.Put(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
