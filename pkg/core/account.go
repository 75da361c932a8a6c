package core

import (
	"context"
	"encoding/json"
)

// AccountStore holds the small out-of-band account blob under its
// singleton key. The blob is opaque to the engine.
type AccountStore struct {
	rs *RecordStore
}

// NewAccountStore creates an account store over the record store
func NewAccountStore(rs *RecordStore) *AccountStore {
	return &AccountStore{rs: rs}
}

// Info returns the stored account blob, nil when none is stored
func (s *AccountStore) Info(ctx context.Context) (json.RawMessage, error) {
	recs, err := s.rs.GetBatch(ctx, []Key{AccountKey()})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0].Value.(*AccountInfo).Data, nil
}

// SetInfo replaces the stored account blob. A nil blob deletes it.
func (s *AccountStore) SetInfo(ctx context.Context, info json.RawMessage) error {
	if info == nil {
		return s.rs.Remove(ctx, []Key{AccountKey()})
	}
	return s.rs.Put(ctx, []Record{{Key: AccountKey(), Value: &AccountInfo{Data: info}}})
}
