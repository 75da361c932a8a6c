// Package core implements the graph engine of loom.
//
// The engine persists a personal knowledge graph (content nodes, edges
// between them, per-origin indexes, activity history, and ingestion
// bookkeeping) on top of a primitive key-value substrate (pkg/kv) that only
// offers bulk get, set, and remove of opaque records. Everything graph-shaped
// is built out of denormalized records the engine maintains by hand on every
// write.
//
// # Key Components
//
//   - RecordStore: the typed layer over the substrate. It enforces the
//     key/value kind pairing, batches writes, and offers the
//     read-modify-return helpers mutation plans are built from.
//   - Batch: an explicit write intent. Proposed appends and removals chain on
//     state already pending in the same batch and commit in one remove call
//     followed by one set call.
//   - NodeStore / EdgeStore: node lifecycle with cascading deletes, and
//     edges stored under both endpoints' adjacency buckets.
//   - AssociationStore: symmetric origin-to-origin records that must exist
//     in pairs; a one-sided pair is reported as corruption, never repaired.
//   - ActivityStore / IngestStore: per-origin visit and attention history
//     with an authoritative cumulative counter, and monotonic per-pipeline
//     ingestion watermarks.
//   - NodeIterator: a newest-first snapshot walk over the node listing.
//
// Multi-record writes go through a single bulk set, which is as much
// atomicity as the substrate contract offers. The engine does not serialize
// concurrent writers: read-modify-write sequences interleave last-writer-wins.
//
// The engine supports pluggable structured logging through the Logger
// interface.
package core
