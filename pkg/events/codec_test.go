package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := SnapshotCompleted{
		SnapshotID: "2026-08-30T12:00:00Z",
		Timestamp:  time.Now().UTC(),
		DataTables: map[string]uint64{"hs_companies": 120, "hs_deals": 45},
		Metadata: SnapshotMetadata{
			TriggeredBy:      "http",
			TestMode:         true,
			TotalDataRecords: 165,
		},
	}

	env, err := NewEnvelope(TypeSnapshotCompleted, "crmx-ingestor", payload)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "crmx-ingestor", env.Source)

	encoded, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, TypeSnapshotCompleted, decoded.Type)

	got, err := DecodeSnapshotCompleted(decoded)
	require.NoError(t, err)
	assert.Equal(t, payload.SnapshotID, got.SnapshotID)
	assert.Equal(t, uint64(120), got.DataTables["hs_companies"])
	assert.True(t, got.Metadata.TestMode)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not base64!!"))
	assert.Error(t, err)

	// Valid base64, invalid JSON.
	_, err = Decode([]byte("bm90IGpzb24="))
	assert.Error(t, err)
}

func TestDecodeSnapshotCompletedRejectsOtherTypes(t *testing.T) {
	env, err := NewEnvelope(TypeSnapshotFailed, "crmx-ingestor", SnapshotFailed{
		SnapshotID: "2026-08-30T12:00:00Z",
		Error:      "load failed",
	})
	require.NoError(t, err)

	_, err = DecodeSnapshotCompleted(env)
	assert.Error(t, err)
}

func TestDecodeSnapshotCompletedRequiresSnapshotID(t *testing.T) {
	env, err := NewEnvelope(TypeSnapshotCompleted, "crmx-ingestor", SnapshotCompleted{})
	require.NoError(t, err)

	_, err = DecodeSnapshotCompleted(env)
	assert.Error(t, err)
}
