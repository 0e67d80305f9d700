package warehouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/clickhouse"
	"github.com/nordlys/crmx/pkg/db/models"
)

// CreateSnapshot registers a snapshot at ingestion start with status
// "started". snapshotID doubles as the snapshot timestamp in the registry.
func (db *DB) CreateSnapshot(ctx context.Context, snapshotID, triggeredBy string) error {
	ts, err := time.Parse(time.RFC3339, snapshotID)
	if err != nil {
		ts = time.Now().UTC()
	}

	entry := &models.SnapshotRegistryEntry{
		SnapshotID:        snapshotID,
		SnapshotTimestamp: ts,
		TriggeredBy:       triggeredBy,
		Status:            models.StatusStarted,
		Notes:             fmt.Sprintf("[%s] started", time.Now().UTC().Format(time.RFC3339)),
		UpdatedAt:         time.Now().UTC(),
	}

	db.Logger.Info("Registering snapshot",
		zap.String("snapshot_id", snapshotID),
		zap.String("triggered_by", triggeredBy),
	)

	return models.InsertSnapshotRegistryEntry(ctx, db.Db, entry)
}

// UpdateSnapshot overwrites the snapshot's status and appends to its notes
// log. The read-modify-insert is not atomic: two stages racing on the same
// snapshot_id resolve last-write-wins on status, which is the documented
// registry behavior rather than a bug to fix here.
func (db *DB) UpdateSnapshot(ctx context.Context, snapshotID, status, notes string) error {
	current, err := db.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("read snapshot %s before update: %w", snapshotID, err)
	}
	if current == nil {
		return fmt.Errorf("snapshot %s is not registered", snapshotID)
	}

	appended := current.Notes
	if notes != "" {
		line := fmt.Sprintf("[%s] %s: %s", time.Now().UTC().Format(time.RFC3339), status, notes)
		if appended != "" {
			appended += "\n"
		}
		appended += line
	}

	entry := &models.SnapshotRegistryEntry{
		SnapshotID:        current.SnapshotID,
		SnapshotTimestamp: current.SnapshotTimestamp,
		TriggeredBy:       current.TriggeredBy,
		Status:            status,
		Notes:             appended,
		UpdatedAt:         time.Now().UTC(),
	}

	db.Logger.Info("Updating snapshot status",
		zap.String("snapshot_id", snapshotID),
		zap.String("status", status),
	)

	return models.InsertSnapshotRegistryEntry(ctx, db.Db, entry)
}

// GetSnapshot returns the latest registry row for a snapshot, or nil when
// the snapshot is unknown. Reads use FINAL so superseded versions from the
// ReplacingMergeTree engine never surface.
func (db *DB) GetSnapshot(ctx context.Context, snapshotID string) (*models.SnapshotRegistryEntry, error) {
	query := fmt.Sprintf(`
		SELECT snapshot_id, snapshot_timestamp, triggered_by, status, notes, updated_at
		FROM %s FINAL
		WHERE snapshot_id = ?
	`, models.TableSnapshotRegistry)

	var rows []models.SnapshotRegistryEntry
	if err := db.SelectWithFinal(ctx, &rows, query, snapshotID); err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// LatestSnapshot returns the most recently updated registry entry, or nil
// when the registry is empty.
func (db *DB) LatestSnapshot(ctx context.Context) (*models.SnapshotRegistryEntry, error) {
	query := fmt.Sprintf(`
		SELECT snapshot_id, snapshot_timestamp, triggered_by, status, notes, updated_at
		FROM %s FINAL
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`, models.TableSnapshotRegistry)

	var rows []models.SnapshotRegistryEntry
	if err := db.SelectWithFinal(ctx, &rows, query); err != nil {
		if clickhouse.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListSnapshots returns registry entries newest-first.
func (db *DB) ListSnapshots(ctx context.Context, limit int) ([]models.SnapshotRegistryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT snapshot_id, snapshot_timestamp, triggered_by, status, notes, updated_at
		FROM %s FINAL
		ORDER BY snapshot_timestamp DESC
		LIMIT ?
	`, models.TableSnapshotRegistry)

	var rows []models.SnapshotRegistryEntry
	if err := db.SelectWithFinal(ctx, &rows, query, limit); err != nil && !clickhouse.IsNoRows(err) {
		return nil, err
	}
	return rows, nil
}
