package core

// Key addresses one record in the substrate. Keys are pure values: the
// same inputs always render the same substrate string, so any two engines
// over one substrate agree on where every record lives.
type Key struct {
	kind Kind
	ref  string
}

// Kind returns the record kind the key addresses
func (k Key) Kind() Kind { return k.kind }

// Ref returns the qualifying reference, empty for singleton kinds
func (k Key) Ref() string { return k.ref }

// String renders the substrate key string. Singleton kinds render as the
// bare kind tag; every other kind renders as tag:ref.
func (k Key) String() string {
	if k.ref == "" {
		return string(k.kind)
	}
	return string(k.kind) + ":" + k.ref
}

// NodeListKey addresses the global node listing
func NodeListKey() Key { return Key{kind: KindNodeList} }

// NodeKey addresses a node's canonical record
func NodeKey(id string) Key { return Key{kind: KindNode, ref: id} }

// OriginIndexKey addresses the node index of one origin
func OriginIndexKey(origin string) Key { return Key{kind: KindOriginIndex, ref: origin} }

// EdgeListKey addresses a node's adjacency bucket
func EdgeListKey(id string) Key { return Key{kind: KindEdgeList, ref: id} }

// ActivityKey addresses an origin's activity record
func ActivityKey(origin string) Key { return Key{kind: KindActivity, ref: origin} }

// ProgressKey addresses a pipeline's ingestion watermark. Only the
// pipeline's stable key participates; the display name never reaches the
// substrate.
func ProgressKey(p Pipeline) Key { return Key{kind: KindProgress, ref: p.Key} }

// PipelineIndexKey addresses the node index of one ingestion pipeline
func PipelineIndexKey(p Pipeline) Key { return Key{kind: KindPipelineIndex, ref: p.Key} }

// AssociationListKey addresses an origin's association records
func AssociationListKey(origin string) Key { return Key{kind: KindAssociationList, ref: origin} }

// SimilarityKey addresses a node's similarity payload
func SimilarityKey(id string) Key { return Key{kind: KindSimilarity, ref: id} }

// AccountKey addresses the account blob
func AccountKey() Key { return Key{kind: KindAccount} }
