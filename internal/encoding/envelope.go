// Package encoding implements the wire form of substrate values: a small
// JSON envelope that pairs every payload with the kind tag of the key it is
// stored under, so reads can detect records written under the wrong key.
package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEnvelope is returned when stored bytes cannot be decoded
var ErrInvalidEnvelope = errors.New("invalid record envelope")

// envelope is the stored shape of every substrate value
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes a payload together with its kind tag
func Marshal(kind string, payload any) ([]byte, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: empty kind tag", ErrInvalidEnvelope)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	data, err := json.Marshal(envelope{Kind: kind, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", kind, err)
	}

	return data, nil
}

// Unmarshal decodes stored bytes into the kind tag and the raw payload
func Unmarshal(data []byte) (string, json.RawMessage, error) {
	if len(data) == 0 {
		return "", nil, ErrInvalidEnvelope
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	if env.Kind == "" {
		return "", nil, fmt.Errorf("%w: missing kind tag", ErrInvalidEnvelope)
	}

	return env.Kind, env.Payload, nil
}
