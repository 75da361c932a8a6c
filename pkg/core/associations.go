package core

import (
	"context"
	"fmt"
)

// AssociationSide is one association as seen from a queried origin: the
// origin on the other side, the association type, and the node ids
// indexed under that other origin.
type AssociationSide struct {
	Origin  string   `json:"origin"`
	Type    string   `json:"type,omitempty"`
	NodeIDs []string `json:"node_ids"`
}

// Associations is the full association view of one origin, partitioned by
// direction. NodeIDs carries the queried origin's own indexed nodes.
type Associations struct {
	Origin  string            `json:"origin"`
	NodeIDs []string          `json:"node_ids"`
	From    []AssociationSide `json:"from"`
	To      []AssociationSide `json:"to"`
}

// AssociationStore maintains the symmetric origin-to-origin association
// records. Every association lives in both origins' lists with opposite
// direction tags; the store verifies that symmetry on each write and
// treats a one-sided record as unrecoverable corruption.
type AssociationStore struct {
	rs     *RecordStore
	logger Logger
}

// NewAssociationStore creates an association store over the record store.
// A nil logger disables logging.
func NewAssociationStore(rs *RecordStore, logger Logger) *AssociationStore {
	if logger == nil {
		logger = NopLogger()
	}
	return &AssociationStore{rs: rs, logger: logger}
}

// Record stores the association between two origins: a to-tagged entry in
// from's list and a from-tagged entry in to's list, in one batch. An
// association both sides already hold is a harmless duplicate and
// succeeds without writing. An association only one side holds is a
// consistency violation and fails with both origins named; it is never
// repaired here.
func (s *AssociationStore) Record(ctx context.Context, from, to, typ string) error {
	if from == "" || to == "" {
		return wrapError("associate", fmt.Errorf("association origins cannot be empty"))
	}

	fromList, toList, err := s.lists(ctx, from, to)
	if err != nil {
		return err
	}

	fromHas := references(fromList, to)
	toHas := references(toList, from)
	switch {
	case fromHas && toHas:
		// duplicates from normal usage are success, not an error
		return nil
	case fromHas != toHas:
		s.logger.Error("one-sided association found", "from", from, "to", to)
		return wrapError("associate", fmt.Errorf("association between %q and %q exists on one side only: %w",
			from, to, ErrConsistency))
	}

	batch := s.rs.NewBatch()
	if err := batch.Append(ctx, AssociationListKey(from), Association{Origin: to, Direction: DirectionTo, Type: typ}); err != nil {
		return err
	}
	if err := batch.Append(ctx, AssociationListKey(to), Association{Origin: from, Direction: DirectionFrom, Type: typ}); err != nil {
		return err
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}

	s.logger.Debug("association recorded", "from", from, "to", to, "type", typ)
	return nil
}

// Get returns everything associated with an origin, partitioned by
// direction, with the node ids indexed under each side attached. An
// origin with no associations yields an empty view, not an error.
func (s *AssociationStore) Get(ctx context.Context, origin string) (*Associations, error) {
	if origin == "" {
		return nil, wrapError("associations", fmt.Errorf("origin cannot be empty"))
	}

	recs, err := s.rs.GetBatch(ctx, []Key{AssociationListKey(origin)})
	if err != nil {
		return nil, err
	}
	var list AssociationList
	if len(recs) > 0 {
		list = recs[0].Value.(AssociationList)
	}

	origins := make([]string, 0, len(list)+1)
	origins = append(origins, origin)
	for _, a := range list {
		origins = append(origins, a.Origin)
	}
	origins = uniqueIDs(origins)

	keys := make([]Key, len(origins))
	for i, o := range origins {
		keys[i] = OriginIndexKey(o)
	}
	idxRecs, err := s.rs.GetBatch(ctx, keys)
	if err != nil {
		return nil, err
	}
	nodeIDs := make(map[string][]string, len(idxRecs))
	for _, r := range idxRecs {
		nodeIDs[r.Key.Ref()] = r.Value.(OriginIndex)
	}

	out := &Associations{Origin: origin, NodeIDs: nodeIDs[origin]}
	for _, a := range list {
		side := AssociationSide{Origin: a.Origin, Type: a.Type, NodeIDs: nodeIDs[a.Origin]}
		switch a.Direction {
		case DirectionFrom:
			out.From = append(out.From, side)
		case DirectionTo:
			out.To = append(out.To, side)
		default:
			s.logger.Warn("association with unknown direction",
				"origin", origin, "other", a.Origin, "direction", string(a.Direction))
		}
	}
	return out, nil
}

// lists bulk-reads both origins' association lists, treating absent as
// empty. For a self association both results are the same list.
func (s *AssociationStore) lists(ctx context.Context, from, to string) (AssociationList, AssociationList, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{AssociationListKey(from), AssociationListKey(to)})
	if err != nil {
		return nil, nil, err
	}

	var fromList, toList AssociationList
	for _, r := range recs {
		if r.Key.Ref() == from {
			fromList = r.Value.(AssociationList)
		}
		if r.Key.Ref() == to {
			toList = r.Value.(AssociationList)
		}
	}
	return fromList, toList, nil
}

// references reports whether the list mentions the origin on either side
func references(list AssociationList, origin string) bool {
	for _, a := range list {
		if a.Origin == origin {
			return true
		}
	}
	return false
}
