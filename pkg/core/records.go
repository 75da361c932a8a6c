package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomdb/loom/internal/encoding"
	"github.com/loomdb/loom/pkg/kv"
)

// Record pairs a key with the payload stored under it
type Record struct {
	Key   Key
	Value Value
}

// Match selects entries of a list-shaped record for removal. Construct one
// with MatchID or MatchEndpoint; the zero Match selects nothing and is
// rejected.
type Match struct {
	id       string
	endpoint string
}

// MatchID selects list entries that carry the given node id. It applies to
// the node listing, origin indexes and pipeline indexes.
func MatchID(id string) Match { return Match{id: id} }

// MatchEndpoint selects edges that touch the given node on either end. It
// applies to adjacency buckets only.
func MatchEndpoint(nodeID string) Match { return Match{endpoint: nodeID} }

// RecordStore reads and writes typed records over a bulk key-value
// substrate. It enforces that keys and payloads agree on their kind and
// exposes the prepare/commit halves the higher stores build batches from.
type RecordStore struct {
	mu     sync.RWMutex
	kv     kv.Store
	logger Logger
	closed bool
}

// NewRecordStore creates a record store over the given substrate. The
// store owns the substrate and closes it on Close. A nil logger disables
// logging.
func NewRecordStore(store kv.Store, logger Logger) *RecordStore {
	if logger == nil {
		logger = NopLogger()
	}
	return &RecordStore{kv: store, logger: logger}
}

// Put writes a set of records in one substrate call. Every record must
// carry a payload of its key's kind, and no key may appear twice; either
// violation rejects the whole set before anything is written.
func (s *RecordStore) Put(ctx context.Context, records []Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("put", ErrStoreClosed)
	}
	if len(records) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(records))
	for _, r := range records {
		if r.Value == nil {
			return wrapError("put", fmt.Errorf("key %q carries no payload", r.Key.String()))
		}
		if r.Value.Kind() != r.Key.Kind() {
			return wrapError("put", fmt.Errorf("key %q holds %q records, got %q: %w",
				r.Key.String(), r.Key.Kind(), r.Value.Kind(), ErrKindMismatch))
		}
		ks := r.Key.String()
		if _, ok := encoded[ks]; ok {
			return wrapError("put", fmt.Errorf("%q: %w", ks, ErrDuplicateKey))
		}
		data, err := encoding.Marshal(string(r.Key.Kind()), r.Value)
		if err != nil {
			return wrapError("put", fmt.Errorf("failed to encode %q: %w", ks, err))
		}
		encoded[ks] = data
	}

	if err := s.kv.Set(ctx, encoded); err != nil {
		return wrapError("put", err)
	}

	s.logger.Debug("records written", "count", len(encoded))
	return nil
}

// Get reads one record. A missing record is an error wrapping ErrNotFound.
func (s *RecordStore) Get(ctx context.Context, key Key) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get", ErrStoreClosed)
	}

	v, ok, err := s.fetch(ctx, key)
	if err != nil {
		return nil, wrapError("get", err)
	}
	if !ok {
		return nil, wrapError("get", fmt.Errorf("%q: %w", key.String(), ErrNotFound))
	}
	return v, nil
}

// GetBatch reads a set of records in one substrate call. Missing records
// are silently dropped from the result, so the result can be shorter than
// the request; present records come back in request order.
func (s *RecordStore) GetBatch(ctx context.Context, keys []Key) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError("get-batch", ErrStoreClosed)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = k.String()
	}
	got, err := s.kv.Get(ctx, raw)
	if err != nil {
		return nil, wrapError("get-batch", err)
	}

	records := make([]Record, 0, len(got))
	for i, k := range keys {
		data, ok := got[raw[i]]
		if !ok {
			continue
		}
		v, err := s.decode(k, data)
		if err != nil {
			return nil, wrapError("get-batch", err)
		}
		records = append(records, Record{Key: k, Value: v})
	}
	return records, nil
}

// PrepareAppend reads the list record under key, or an empty list when
// absent, and returns the proposed record with elem appended. Nothing is
// written; the caller decides when the proposal reaches the substrate.
func (s *RecordStore) PrepareAppend(ctx context.Context, key Key, elem any) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, wrapError("append", ErrStoreClosed)
	}

	base, ok, err := s.fetch(ctx, key)
	if err != nil {
		return Record{}, wrapError("append", err)
	}
	if !ok {
		base, ok = emptyValue(key.Kind())
		if !ok {
			return Record{}, wrapError("append", fmt.Errorf("kind %q does not hold a list: %w", key.Kind(), ErrKindMismatch))
		}
	}

	next, err := appendValue(key, base, elem)
	if err != nil {
		return Record{}, wrapError("append", err)
	}
	return Record{Key: key, Value: next}, nil
}

// PrepareRemoval reads the list record under key and returns the proposed
// record with every entry selected by m filtered out. The boolean reports
// whether anything matched; an absent record matches nothing. Nothing is
// written.
func (s *RecordStore) PrepareRemoval(ctx context.Context, key Key, m Match) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, false, wrapError("unlist", ErrStoreClosed)
	}

	base, ok, err := s.fetch(ctx, key)
	if err != nil {
		return Record{}, false, wrapError("unlist", err)
	}
	if !ok {
		return Record{}, false, nil
	}

	next, matched, err := removeMatching(key, base, m)
	if err != nil {
		return Record{}, false, wrapError("unlist", err)
	}
	return Record{Key: key, Value: next}, matched, nil
}

// Remove deletes a set of records in one substrate call. Keys that do not
// exist are ignored.
func (s *RecordStore) Remove(ctx context.Context, keys []Key) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return wrapError("remove", ErrStoreClosed)
	}
	if len(keys) == 0 {
		return nil
	}

	raw := make([]string, len(keys))
	for i, k := range keys {
		raw[i] = k.String()
	}
	if err := s.kv.Delete(ctx, raw); err != nil {
		return wrapError("remove", err)
	}

	s.logger.Debug("records removed", "count", len(raw))
	return nil
}

// Close closes the store and the substrate under it. Close is idempotent.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.kv.Close(); err != nil {
		return wrapError("close", err)
	}
	s.logger.Debug("record store closed")
	return nil
}

// fetch reads and decodes one record. The caller holds the lock.
func (s *RecordStore) fetch(ctx context.Context, key Key) (Value, bool, error) {
	ks := key.String()
	got, err := s.kv.Get(ctx, []string{ks})
	if err != nil {
		return nil, false, err
	}
	data, ok := got[ks]
	if !ok {
		return nil, false, nil
	}
	v, err := s.decode(key, data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// decode rebuilds a payload and verifies the stored kind matches the key
func (s *RecordStore) decode(key Key, data []byte) (Value, error) {
	kind, payload, err := encoding.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", key.String(), err)
	}
	if Kind(kind) != key.Kind() {
		return nil, fmt.Errorf("record %q holds kind %q: %w", key.String(), kind, ErrKindMismatch)
	}
	return decodeValue(Kind(kind), payload)
}

// appendValue returns base with elem appended. The element type is fixed
// per kind; anything else is rejected.
func appendValue(key Key, base Value, elem any) (Value, error) {
	switch key.Kind() {
	case KindNodeList:
		ref, ok := elem.(NodeRef)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to %q record: %w", elem, key.Kind(), ErrKindMismatch)
		}
		return append(base.(NodeList), ref), nil
	case KindOriginIndex:
		id, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to %q record: %w", elem, key.Kind(), ErrKindMismatch)
		}
		return append(base.(OriginIndex), id), nil
	case KindPipelineIndex:
		id, ok := elem.(string)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to %q record: %w", elem, key.Kind(), ErrKindMismatch)
		}
		return append(base.(PipelineIndex), id), nil
	case KindEdgeList:
		e, ok := elem.(Edge)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to %q record: %w", elem, key.Kind(), ErrKindMismatch)
		}
		return append(base.(EdgeList), e), nil
	case KindAssociationList:
		a, ok := elem.(Association)
		if !ok {
			return nil, fmt.Errorf("cannot append %T to %q record: %w", elem, key.Kind(), ErrKindMismatch)
		}
		return append(base.(AssociationList), a), nil
	default:
		return nil, fmt.Errorf("kind %q does not hold a list: %w", key.Kind(), ErrKindMismatch)
	}
}

// removeMatching returns base with every entry selected by m filtered out,
// and whether anything was filtered
func removeMatching(key Key, base Value, m Match) (Value, bool, error) {
	switch key.Kind() {
	case KindNodeList:
		if m.id == "" {
			return nil, false, fmt.Errorf("%q entries are matched by id: %w", key.Kind(), ErrKindMismatch)
		}
		list := base.(NodeList)
		out := make(NodeList, 0, len(list))
		for _, ref := range list {
			if ref.ID == m.id {
				continue
			}
			out = append(out, ref)
		}
		return out, len(out) != len(list), nil
	case KindOriginIndex:
		if m.id == "" {
			return nil, false, fmt.Errorf("%q entries are matched by id: %w", key.Kind(), ErrKindMismatch)
		}
		out, matched := filterIDs(base.(OriginIndex), m.id)
		return OriginIndex(out), matched, nil
	case KindPipelineIndex:
		if m.id == "" {
			return nil, false, fmt.Errorf("%q entries are matched by id: %w", key.Kind(), ErrKindMismatch)
		}
		out, matched := filterIDs(base.(PipelineIndex), m.id)
		return PipelineIndex(out), matched, nil
	case KindEdgeList:
		if m.endpoint == "" {
			return nil, false, fmt.Errorf("%q entries are matched by endpoint: %w", key.Kind(), ErrKindMismatch)
		}
		list := base.(EdgeList)
		out := make(EdgeList, 0, len(list))
		for _, e := range list {
			if e.From == m.endpoint || e.To == m.endpoint {
				continue
			}
			out = append(out, e)
		}
		return out, len(out) != len(list), nil
	default:
		return nil, false, fmt.Errorf("kind %q does not support matched removal: %w", key.Kind(), ErrKindMismatch)
	}
}

// filterIDs drops every occurrence of id from ids
func filterIDs(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	for _, cur := range ids {
		if cur == id {
			continue
		}
		out = append(out, cur)
	}
	return out, len(out) != len(ids)
}
