package core

import (
	"context"
	"fmt"
	"time"
)

// ActivityStore accumulates per-origin visit and attention telemetry. The
// record is append-only except for the cumulative attention total, which
// is maintained on every write rather than derived from the list on read.
type ActivityStore struct {
	rs *RecordStore
}

// NewActivityStore creates an activity tracker over the record store
func NewActivityStore(rs *RecordStore) *ActivityStore {
	return &ActivityStore{rs: rs}
}

// AddVisit appends one visit to the origin's activity record. The
// pipeline key tags visits reported by an external pipeline; an empty key
// means a local visit. Re-visiting an origin is always success.
func (s *ActivityStore) AddVisit(ctx context.Context, origin string, at time.Time, pipelineKey string) error {
	if origin == "" {
		return wrapError("visit", fmt.Errorf("origin cannot be empty"))
	}

	log, err := s.load(ctx, origin)
	if err != nil {
		return err
	}
	log.Visits = append(log.Visits, Visit{At: at, Pipeline: pipelineKey})
	return s.rs.Put(ctx, []Record{{Key: ActivityKey(origin), Value: log}})
}

// AddAttention appends one attention span and adds it into the running
// total. The total is authoritative; readers never re-derive it.
func (s *ActivityStore) AddAttention(ctx context.Context, origin string, at time.Time, span time.Duration) error {
	if origin == "" {
		return wrapError("attention", fmt.Errorf("origin cannot be empty"))
	}

	log, err := s.load(ctx, origin)
	if err != nil {
		return err
	}
	log.Attentions = append(log.Attentions, Attention{At: at, Span: span})
	log.Total += span
	return s.rs.Put(ctx, []Record{{Key: ActivityKey(origin), Value: log}})
}

// Get returns the origin's activity record, zero-valued when the origin
// has never been seen
func (s *ActivityStore) Get(ctx context.Context, origin string) (*ActivityLog, error) {
	return s.load(ctx, origin)
}

// load reads the activity record, bootstrapping a zero log when absent
func (s *ActivityStore) load(ctx context.Context, origin string) (*ActivityLog, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{ActivityKey(origin)})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &ActivityLog{}, nil
	}
	return recs[0].Value.(*ActivityLog), nil
}

// IngestStore tracks per-pipeline ingestion watermarks
type IngestStore struct {
	rs *RecordStore
}

// NewIngestStore creates an ingestion tracker over the record store
func NewIngestStore(rs *RecordStore) *IngestStore {
	return &IngestStore{rs: rs}
}

// Progress returns the pipeline's ingestion watermark, zero for a
// pipeline never advanced. Callers treat zero as ingest-from-the-beginning.
func (s *IngestStore) Progress(ctx context.Context, p Pipeline) (time.Time, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{ProgressKey(p)})
	if err != nil {
		return time.Time{}, err
	}
	if len(recs) == 0 {
		return time.Time{}, nil
	}
	return recs[0].Value.(*IngestProgress).Watermark, nil
}

// Advance moves the pipeline's watermark forward to mark. The watermark
// is monotonic: a mark at or behind the stored one leaves it unchanged.
func (s *IngestStore) Advance(ctx context.Context, p Pipeline, mark time.Time) error {
	if p.Key == "" {
		return wrapError("advance", fmt.Errorf("pipeline key cannot be empty"))
	}

	current, err := s.Progress(ctx, p)
	if err != nil {
		return err
	}
	if !mark.After(current) {
		return nil
	}
	return s.rs.Put(ctx, []Record{{Key: ProgressKey(p), Value: &IngestProgress{Watermark: mark}}})
}
