package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Encode serializes an envelope to base64-wrapped JSON, the wire form
// carried in the stream entry's data field.
func Encode(env Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal event envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a base64-wrapped JSON envelope.
func Decode(data []byte) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return Envelope{}, fmt.Errorf("base64 decode event: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return env, nil
}

// DecodeSnapshotCompleted extracts the completed-snapshot payload from an
// envelope, rejecting other event types.
func DecodeSnapshotCompleted(env Envelope) (SnapshotCompleted, error) {
	if env.Type != TypeSnapshotCompleted {
		return SnapshotCompleted{}, fmt.Errorf("unexpected event type %q", env.Type)
	}

	var payload SnapshotCompleted
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return SnapshotCompleted{}, fmt.Errorf("unmarshal snapshot completed payload: %w", err)
	}
	if payload.SnapshotID == "" {
		return SnapshotCompleted{}, fmt.Errorf("missing snapshot_id in event data")
	}
	return payload, nil
}
