// Package events defines the snapshot event contract between the ingestor
// and the scorer: a versioned envelope, base64+JSON encoded, carried over a
// Redis stream.
package events

import (
	"encoding/json"
	"time"
)

// Envelope event types.
const (
	TypeSnapshotCompleted = "crm.snapshot.completed"
	TypeSnapshotFailed    = "crm.snapshot.failed"
)

// EnvelopeVersion is bumped when the envelope layout changes.
const EnvelopeVersion = "1.0"

// Envelope wraps every published event with type, version, and provenance.
type Envelope struct {
	Type      string          `json:"type"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// SnapshotCompleted is the payload announcing that one snapshot's ingestion
// finished and its per-table row counts.
type SnapshotCompleted struct {
	SnapshotID      string            `json:"snapshot_id"`
	Timestamp       time.Time         `json:"timestamp"`
	DataTables      map[string]uint64 `json:"data_tables"`
	ReferenceTables map[string]uint64 `json:"reference_tables"`
	Metadata        SnapshotMetadata  `json:"metadata"`
}

// SnapshotMetadata carries run provenance alongside the counts.
type SnapshotMetadata struct {
	TriggeredBy          string `json:"triggered_by"`
	TestMode             bool   `json:"test_mode"`
	TotalDataRecords     uint64 `json:"total_data_records"`
	TotalReferenceRecords uint64 `json:"total_reference_records"`
}

// SnapshotFailed is the payload announcing a failed ingestion run.
type SnapshotFailed struct {
	SnapshotID string    `json:"snapshot_id"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error"`
}

// NewEnvelope wraps a payload, stamping version, time, and source.
func NewEnvelope(eventType, source string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      eventType,
		Version:   EnvelopeVersion,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Data:      data,
	}, nil
}
