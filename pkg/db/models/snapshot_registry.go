package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableSnapshotRegistry = "hs_snapshot_registry"

// Lifecycle statuses recorded per snapshot. Status is overwritten at each
// stage boundary; notes accumulate as a log.
const (
	StatusStarted           = "started"
	StatusIngested          = "ingested"
	StatusIngestFailed      = "ingest_failed"
	StatusScoringInProgress = "scoring_in_progress"
	StatusScoringCompleted  = "scoring_completed"
	StatusScoringFailed     = "scoring_failed"
)

var SnapshotRegistryColumns = []ColumnDef{
	{Name: "snapshot_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "snapshot_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "triggered_by", Type: "String", Codec: "ZSTD(1)"},
	{Name: "status", Type: "String", Codec: "ZSTD(1)"},
	{Name: "notes", Type: "String", Codec: "ZSTD(1)"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// SnapshotRegistryEntry is the audit row for one snapshot's lifecycle.
// Updates insert a new version per snapshot_id; ReplacingMergeTree keeps the
// row with the highest updated_at, so reads must use FINAL. Two stages racing
// on the same snapshot_id resolve last-write-wins on status.
type SnapshotRegistryEntry struct {
	SnapshotID        string    `ch:"snapshot_id"`
	SnapshotTimestamp time.Time `ch:"snapshot_timestamp"`
	TriggeredBy       string    `ch:"triggered_by"`
	Status            string    `ch:"status"`
	Notes             string    `ch:"notes"`
	UpdatedAt         time.Time `ch:"updated_at"`
}

func InitSnapshotRegistry(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY snapshot_id
	`, TableSnapshotRegistry, ColumnsToSchemaSQL(SnapshotRegistryColumns))
	return db.Exec(ctx, query)
}

// InsertSnapshotRegistryEntry writes one version row for a snapshot.
func InsertSnapshotRegistryEntry(ctx context.Context, db driver.Conn, entry *SnapshotRegistryEntry) error {
	query := fmt.Sprintf(`INSERT INTO %s (snapshot_id, snapshot_timestamp, triggered_by, status, notes, updated_at) VALUES`, TableSnapshotRegistry)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	err = batch.Append(
		entry.SnapshotID,
		entry.SnapshotTimestamp,
		entry.TriggeredBy,
		entry.Status,
		entry.Notes,
		entry.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return batch.Send()
}
