package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// generateID generates a unique id for nodes and edges using UUID
func generateID() string {
	return uuid.New().String()
}

// NodeDraft describes a node to create. Inbound and Outbound name existing
// nodes to link at creation time: an inbound edge runs from the named node
// to the new one, an outbound edge from the new one to the named node.
type NodeDraft struct {
	Type      string
	Text      string
	Attrs     map[string]string
	IndexText string
	Origin    string
	Pipeline  *Pipeline
	Inbound   []string
	Outbound  []string
}

// NodeUpdate carries a partial node update. Nil fields are left unchanged.
// KeepTimestamp preserves the stored updated-at instead of bumping it.
type NodeUpdate struct {
	ID            string
	Text          *string
	IndexText     *string
	KeepTimestamp bool
}

// DeleteFilter selects nodes for bulk deletion. Deletion by ingestion
// pipeline is the only criterion this backend supports.
type DeleteFilter struct {
	Pipeline *Pipeline
}

// NodeStore is the node repository. It owns the node lifecycle, the global
// listing, the origin and pipeline indexes, and the cascading removal plan
// that keeps them consistent when a node goes away.
type NodeStore struct {
	rs       *RecordStore
	logger   Logger
	notifier *notifier
}

// NewNodeStore creates a node store over the record store. A nil logger
// disables logging.
func NewNodeStore(rs *RecordStore, logger Logger) *NodeStore {
	if logger == nil {
		logger = NopLogger()
	}
	return &NodeStore{rs: rs, logger: logger, notifier: newNotifier()}
}

// Create builds a node from the draft and commits it in one batch together
// with its listing entry, its origin and pipeline index entries, and one
// edge per declared neighbor, each stored in both endpoints' adjacency
// buckets. Returns the stored node.
func (s *NodeStore) Create(ctx context.Context, draft NodeDraft) (*Node, error) {
	if draft.Pipeline != nil && draft.Pipeline.Key == "" {
		return nil, wrapError("create", fmt.Errorf("pipeline key cannot be empty"))
	}

	now := time.Now().UTC()
	node := &Node{
		ID:        generateID(),
		Type:      draft.Type,
		Text:      draft.Text,
		Attrs:     draft.Attrs,
		IndexText: draft.IndexText,
		Origin:    draft.Origin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if draft.Pipeline != nil {
		node.Pipeline = draft.Pipeline.Key
	}

	batch := s.rs.NewBatch()
	if err := batch.Put(NodeKey(node.ID), node); err != nil {
		return nil, err
	}
	if err := batch.Append(ctx, NodeListKey(), NodeRef{ID: node.ID, CreatedAt: node.CreatedAt}); err != nil {
		return nil, err
	}
	if node.Origin != "" {
		if err := batch.Append(ctx, OriginIndexKey(node.Origin), node.ID); err != nil {
			return nil, err
		}
	}
	if draft.Pipeline != nil {
		if err := batch.Append(ctx, PipelineIndexKey(*draft.Pipeline), node.ID); err != nil {
			return nil, err
		}
	}
	for _, from := range draft.Inbound {
		if err := appendEdge(ctx, batch, newEdge(from, node.ID, now)); err != nil {
			return nil, err
		}
	}
	for _, to := range draft.Outbound {
		if err := appendEdge(ctx, batch, newEdge(node.ID, to, now)); err != nil {
			return nil, err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug("node created", "id", node.ID, "type", node.Type,
		"edges", len(draft.Inbound)+len(draft.Outbound))
	s.notifier.publish(Event{Type: EventNodeCreated, Node: node})
	return node, nil
}

// Get loads one node by id. An id with no canonical record is a not-found
// error.
func (s *NodeStore) Get(ctx context.Context, id string) (*Node, error) {
	v, err := s.rs.Get(ctx, NodeKey(id))
	if err != nil {
		return nil, err
	}
	return v.(*Node), nil
}

// GetMany bulk-loads nodes by id. Ids with no canonical record are
// silently skipped, so the result can be shorter than the request.
func (s *NodeStore) GetMany(ctx context.Context, ids []string) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = NodeKey(id)
	}
	recs, err := s.rs.GetBatch(ctx, keys)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(recs))
	for _, r := range recs {
		nodes = append(nodes, r.Value.(*Node))
	}
	return nodes, nil
}

// GetByOrigin returns every node recorded under the origin's index. An
// origin with no index entry yields an empty result, not an error.
func (s *NodeStore) GetByOrigin(ctx context.Context, origin string) ([]*Node, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{OriginIndexKey(origin)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return s.GetMany(ctx, recs[0].Value.(OriginIndex))
}

// GetAllIDs returns every node id, ordered by creation time descending
func (s *NodeStore) GetAllIDs(ctx context.Context) ([]string, error) {
	list, err := s.listing(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, ref := range list {
		ids[i] = ref.ID
	}
	return ids, nil
}

// listing loads the global node listing sorted newest first. The stored
// listing is append-ordered, so it is reversed before the stable sort to
// keep same-instant creations newest first.
func (s *NodeStore) listing(ctx context.Context) (NodeList, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{NodeListKey()})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	stored := recs[0].Value.(NodeList)
	list := make(NodeList, len(stored))
	for i, ref := range stored {
		list[len(stored)-1-i] = ref
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Update merges the supplied fields into an existing node and writes the
// single updated record. Updating an absent id is a not-found error.
func (s *NodeStore) Update(ctx context.Context, u NodeUpdate) (*Node, error) {
	node, err := s.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	if u.Text != nil {
		node.Text = *u.Text
	}
	if u.IndexText != nil {
		node.IndexText = *u.IndexText
	}
	if !u.KeepTimestamp {
		node.UpdatedAt = time.Now().UTC()
	}

	if err := s.rs.Put(ctx, []Record{{Key: NodeKey(node.ID), Value: node}}); err != nil {
		return nil, err
	}

	s.logger.Debug("node updated", "id", node.ID)
	s.notifier.publish(Event{Type: EventNodeUpdated, Node: node})
	return node, nil
}

// Delete removes a node and every record that mentions it: the canonical
// record, the adjacency bucket, the similarity record, the listing entry,
// the origin and pipeline index entries, and the edge copies held in every
// neighbor's bucket. Deleting an id with no canonical record is a no-op.
func (s *NodeStore) Delete(ctx context.Context, id string) error {
	node, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	s.notifier.publish(Event{Type: EventNodeDeleting, Node: node})

	batch := s.rs.NewBatch()
	if err := s.planRemoval(ctx, batch, node); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.logger.Debug("node deleted", "id", id)
	return nil
}

// DeleteMany removes every node selected by the filter in one merged
// cascade. The pipeline's index record and ingestion watermark are removed
// with its nodes. Returns the number of node ids removed.
func (s *NodeStore) DeleteMany(ctx context.Context, f DeleteFilter) (int, error) {
	if f.Pipeline == nil {
		return 0, wrapError("delete-many", fmt.Errorf("only deletion by pipeline is supported: %w", ErrInvalidFilter))
	}
	if f.Pipeline.Key == "" {
		return 0, wrapError("delete-many", fmt.Errorf("pipeline key cannot be empty: %w", ErrInvalidFilter))
	}
	p := *f.Pipeline

	recs, err := s.rs.GetBatch(ctx, []Key{PipelineIndexKey(p)})
	if err != nil {
		return 0, err
	}
	var ids []string
	if len(recs) > 0 {
		ids = uniqueIDs(recs[0].Value.(PipelineIndex))
	}

	nodes, err := s.GetMany(ctx, ids)
	if err != nil {
		return 0, err
	}
	loaded := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		loaded[n.ID] = n
	}

	batch := s.rs.NewBatch()
	for _, id := range ids {
		node, ok := loaded[id]
		if !ok {
			// canonical record already gone; scrub what is still findable
			batch.Remove(NodeKey(id))
			batch.Remove(EdgeListKey(id))
			batch.Remove(SimilarityKey(id))
			if err := batch.RemoveMatching(ctx, NodeListKey(), MatchID(id)); err != nil {
				return 0, err
			}
			continue
		}
		s.notifier.publish(Event{Type: EventNodeDeleting, Node: node})
		if err := s.planRemoval(ctx, batch, node); err != nil {
			return 0, err
		}
	}
	batch.Remove(PipelineIndexKey(p))
	batch.Remove(ProgressKey(p))

	if err := batch.Commit(ctx); err != nil {
		return 0, err
	}

	s.logger.Info("pipeline purged", "pipeline", p.Key, "nodes", len(ids))
	return len(ids), nil
}

// planRemoval stages the removal cascade for one node on the batch: its
// own records go away unconditionally, its id is scrubbed from the listing
// and its indexes, and every neighbor bucket drops the edges touching it.
func (s *NodeStore) planRemoval(ctx context.Context, batch *Batch, node *Node) error {
	neighbors, err := s.neighborIDs(ctx, batch, node.ID)
	if err != nil {
		return err
	}

	batch.Remove(NodeKey(node.ID))
	batch.Remove(EdgeListKey(node.ID))
	batch.Remove(SimilarityKey(node.ID))

	for _, neighbor := range neighbors {
		if err := batch.RemoveMatching(ctx, EdgeListKey(neighbor), MatchEndpoint(node.ID)); err != nil {
			return err
		}
	}
	if err := batch.RemoveMatching(ctx, NodeListKey(), MatchID(node.ID)); err != nil {
		return err
	}
	if node.Origin != "" {
		if err := batch.RemoveMatching(ctx, OriginIndexKey(node.Origin), MatchID(node.ID)); err != nil {
			return err
		}
	}
	if node.Pipeline != "" {
		if err := batch.RemoveMatching(ctx, PipelineIndexKey(Pipeline{Key: node.Pipeline}), MatchID(node.ID)); err != nil {
			return err
		}
	}
	return nil
}

// neighborIDs finds every other node the given node shares an edge with.
// The batch's pending state takes precedence over the store, so merged
// cascades see each other's work instead of rediscovering removed edges.
func (s *NodeStore) neighborIDs(ctx context.Context, batch *Batch, id string) ([]string, error) {
	key := EdgeListKey(id)

	var bucket EdgeList
	if pending, ok := batch.puts[key.String()]; ok {
		bucket = pending.Value.(EdgeList)
	} else if _, gone := batch.removals[key.String()]; gone {
		return nil, nil
	} else {
		recs, err := s.rs.GetBatch(ctx, []Key{key})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, nil
		}
		bucket = recs[0].Value.(EdgeList)
	}

	seen := make(map[string]struct{}, len(bucket))
	ids := make([]string, 0, len(bucket))
	for _, e := range bucket {
		for _, other := range []string{e.From, e.To} {
			if other == id {
				continue
			}
			if _, ok := seen[other]; ok {
				continue
			}
			seen[other] = struct{}{}
			ids = append(ids, other)
		}
	}
	return ids, nil
}

// GetByURL is not implemented by this backend
func (s *NodeStore) GetByURL(ctx context.Context, url string) (*Node, error) {
	return nil, wrapError("get-by-url", fmt.Errorf("node lookup by url: %w", ErrUnsupported))
}

// Similarity returns the node's opaque similarity payload, or nil when
// none is stored. The payload's lifecycle is independent of the node's.
func (s *NodeStore) Similarity(ctx context.Context, id string) (json.RawMessage, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{SimilarityKey(id)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0].Value.(*SimilarityData).Data, nil
}

// SetSimilarity stores the node's similarity payload, replacing any
// previous one
func (s *NodeStore) SetSimilarity(ctx context.Context, id string, payload json.RawMessage) error {
	return s.rs.Put(ctx, []Record{{Key: SimilarityKey(id), Value: &SimilarityData{Data: payload}}})
}

// RemoveSimilarity drops the node's similarity payload if present
func (s *NodeStore) RemoveSimilarity(ctx context.Context, id string) error {
	return s.rs.Remove(ctx, []Key{SimilarityKey(id)})
}

// Subscribe registers an observer for node lifecycle events and returns
// its cancel function. Cancelling twice is harmless.
func (s *NodeStore) Subscribe(fn Observer) func() {
	return s.notifier.subscribe(fn)
}

// uniqueIDs drops duplicate ids, keeping first occurrences in order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
