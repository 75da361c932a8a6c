package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one of the reserved record shapes. Every key and every
// stored value carries a kind, and the engine refuses to mix them.
type Kind string

const (
	// KindNodeList is the global listing of all nodes
	KindNodeList Kind = "all-nids"
	// KindNode is a node's canonical record
	KindNode Kind = "nid->node"
	// KindOriginIndex lists the node ids produced by one origin
	KindOriginIndex Kind = "origin->nid"
	// KindEdgeList is a node's adjacency bucket
	KindEdgeList Kind = "nid->edge"
	// KindActivity is an origin's visit and attention record
	KindActivity Kind = "origin->activity"
	// KindProgress is a pipeline's ingestion watermark
	KindProgress Kind = "ext-pipe"
	// KindPipelineIndex lists the node ids created by one pipeline
	KindPipelineIndex Kind = "ext-pipe-id->nid"
	// KindAssociationList is an origin's association records
	KindAssociationList Kind = "origin->ext-assoc"
	// KindSimilarity is a node's opaque similarity payload
	KindSimilarity Kind = "nid->sim-search-node"
	// KindAccount is the out-of-band account blob
	KindAccount Kind = "account-info"
)

// Value is implemented by every record payload the engine can store. The
// set is closed: exactly one concrete type per kind, so a payload of the
// wrong shape cannot be constructed, only a payload under the wrong key.
type Value interface {
	// Kind returns the record kind this payload belongs to
	Kind() Kind

	value()
}

// Pipeline identifies an external ingestion pipeline. Key is the stable
// identity all substrate keys are derived from; Name is a human label and
// never keyed on.
type Pipeline struct {
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// Node is the canonical record of a content node. Origin and Pipeline
// record where the node came from so removal cascades can find the indexes
// that mention it.
type Node struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Text      string            `json:"text,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	IndexText string            `json:"index_text,omitempty"`
	Origin    string            `json:"origin,omitempty"`
	Pipeline  string            `json:"pipeline,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NodeRef is the lightweight projection of a node kept in the global listing
type NodeRef struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// NodeList is the global listing of all nodes, in insertion order
type NodeList []NodeRef

// OriginIndex lists the node ids produced by one origin
type OriginIndex []string

// PipelineIndex lists the node ids created by one ingestion pipeline
type PipelineIndex []string

// Edge is a directed link between two nodes. Sticky is always false at
// creation; this backend offers no way to flip it later.
type Edge struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Sticky    bool      `json:"sticky"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EdgeList is one node's adjacency bucket: every edge touching the node,
// whichever end it sits on. Each edge is stored in both endpoints' buckets.
type EdgeList []Edge

// Visit is one recorded visit to an origin, tagged with the reporting
// pipeline when an external one reported it
type Visit struct {
	At       time.Time `json:"at"`
	Pipeline string    `json:"pipeline,omitempty"`
}

// Attention is one recorded span of attention on an origin
type Attention struct {
	At   time.Time     `json:"at"`
	Span time.Duration `json:"span"`
}

// ActivityLog is an origin's accumulated activity. Total is authoritative:
// it is maintained on every write, not derived from Attentions on read.
type ActivityLog struct {
	Visits     []Visit       `json:"visits"`
	Attentions []Attention   `json:"attentions"`
	Total      time.Duration `json:"total"`
}

// Direction tags which side of an association an entry describes
type Direction string

const (
	// DirectionFrom marks the entry stored under the target origin
	DirectionFrom Direction = "from"
	// DirectionTo marks the entry stored under the source origin
	DirectionTo Direction = "to"
)

// Association is one half of a symmetric origin-to-origin link. Origin
// names the other side.
type Association struct {
	Origin    string    `json:"origin"`
	Direction Direction `json:"direction"`
	Type      string    `json:"type,omitempty"`
}

// AssociationList is one origin's association records
type AssociationList []Association

// IngestProgress carries one pipeline's ingestion high-water mark
type IngestProgress struct {
	Watermark time.Time `json:"watermark"`
}

// SimilarityData is a node's opaque similarity payload. The engine stores
// and returns it untouched; interpreting it is someone else's job.
type SimilarityData struct {
	Data json.RawMessage `json:"data"`
}

// AccountInfo is the opaque out-of-band account blob
type AccountInfo struct {
	Data json.RawMessage `json:"data"`
}

// Kind implementations for every payload type
func (NodeList) Kind() Kind        { return KindNodeList }
func (*Node) Kind() Kind           { return KindNode }
func (OriginIndex) Kind() Kind     { return KindOriginIndex }
func (PipelineIndex) Kind() Kind   { return KindPipelineIndex }
func (EdgeList) Kind() Kind        { return KindEdgeList }
func (*ActivityLog) Kind() Kind    { return KindActivity }
func (*IngestProgress) Kind() Kind { return KindProgress }
func (AssociationList) Kind() Kind { return KindAssociationList }
func (*SimilarityData) Kind() Kind { return KindSimilarity }
func (*AccountInfo) Kind() Kind    { return KindAccount }

func (NodeList) value()        {}
func (*Node) value()           {}
func (OriginIndex) value()     {}
func (PipelineIndex) value()   {}
func (EdgeList) value()        {}
func (*ActivityLog) value()    {}
func (*IngestProgress) value() {}
func (AssociationList) value() {}
func (*SimilarityData) value() {}
func (*AccountInfo) value()    {}

// decodeValue rebuilds the concrete payload for a kind tag
func decodeValue(kind Kind, payload json.RawMessage) (Value, error) {
	switch kind {
	case KindNodeList:
		var v NodeList
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return v, nil
	case KindNode:
		var v Node
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return &v, nil
	case KindOriginIndex:
		var v OriginIndex
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return v, nil
	case KindPipelineIndex:
		var v PipelineIndex
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return v, nil
	case KindEdgeList:
		var v EdgeList
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return v, nil
	case KindActivity:
		var v ActivityLog
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return &v, nil
	case KindProgress:
		var v IngestProgress
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return &v, nil
	case KindAssociationList:
		var v AssociationList
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return v, nil
	case KindSimilarity:
		var v SimilarityData
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return &v, nil
	case KindAccount:
		var v AccountInfo
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		return &v, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// emptyValue returns the empty payload for an array-valued kind. The second
// result is false for kinds that are not array-shaped.
func emptyValue(kind Kind) (Value, bool) {
	switch kind {
	case KindNodeList:
		return NodeList{}, true
	case KindOriginIndex:
		return OriginIndex{}, true
	case KindPipelineIndex:
		return PipelineIndex{}, true
	case KindEdgeList:
		return EdgeList{}, true
	case KindAssociationList:
		return AssociationList{}, true
	}
	return nil, false
}
