package core

import (
	"context"
	"fmt"
	"time"
)

// newEdge builds an edge record between two nodes. Sticky is always false
// at creation; this backend offers no way to set it afterwards.
func newEdge(from, to string, now time.Time) Edge {
	return Edge{
		ID:        generateID(),
		From:      from,
		To:        to,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// appendEdge stages the edge into both endpoints' adjacency buckets. A
// self edge has a single bucket and is stored once.
func appendEdge(ctx context.Context, batch *Batch, e Edge) error {
	if err := batch.Append(ctx, EdgeListKey(e.From), e); err != nil {
		return err
	}
	if e.To == e.From {
		return nil
	}
	return batch.Append(ctx, EdgeListKey(e.To), e)
}

// NodeEdges partitions a node's adjacency bucket relative to that node
type NodeEdges struct {
	Incoming []Edge `json:"incoming"`
	Outgoing []Edge `json:"outgoing"`
}

// EdgeStore is the edge repository. Edges are created and read here; they
// are removed only by their endpoints' delete cascade.
type EdgeStore struct {
	rs     *RecordStore
	logger Logger
}

// NewEdgeStore creates an edge store over the record store. A nil logger
// disables logging.
func NewEdgeStore(rs *RecordStore, logger Logger) *EdgeStore {
	if logger == nil {
		logger = NopLogger()
	}
	return &EdgeStore{rs: rs, logger: logger}
}

// Create links two nodes with a fresh edge, stored in both endpoints'
// adjacency buckets in one batch. Endpoint existence is not checked;
// callers keep endpoints valid.
func (s *EdgeStore) Create(ctx context.Context, from, to string) (*Edge, error) {
	if from == "" || to == "" {
		return nil, wrapError("create", fmt.Errorf("edge endpoints cannot be empty"))
	}

	e := newEdge(from, to, time.Now().UTC())

	batch := s.rs.NewBatch()
	if err := appendEdge(ctx, batch, e); err != nil {
		return nil, err
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	s.logger.Debug("edge created", "id", e.ID, "from", from, "to", to)
	return &e, nil
}

// GetAll reads the node's adjacency bucket and partitions it relative to
// the node: edges whose target is the node are incoming, the rest are
// outgoing. A node with no bucket yields empty partitions.
func (s *EdgeStore) GetAll(ctx context.Context, nodeID string) (*NodeEdges, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{EdgeListKey(nodeID)})
	if err != nil {
		return nil, err
	}

	edges := &NodeEdges{}
	if len(recs) == 0 {
		return edges, nil
	}
	for _, e := range recs[0].Value.(EdgeList) {
		if e.To == nodeID {
			edges.Incoming = append(edges.Incoming, e)
		} else {
			edges.Outgoing = append(edges.Outgoing, e)
		}
	}
	return edges, nil
}

// Delete is not implemented by this backend; edges go away only with their
// endpoints' delete cascade
func (s *EdgeStore) Delete(ctx context.Context, edgeID string) error {
	return wrapError("delete", fmt.Errorf("explicit edge deletion: %w", ErrUnsupported))
}

// MarkSticky is not implemented by this backend
func (s *EdgeStore) MarkSticky(ctx context.Context, edgeID string) error {
	return wrapError("mark-sticky", fmt.Errorf("sticky edge marking: %w", ErrUnsupported))
}
