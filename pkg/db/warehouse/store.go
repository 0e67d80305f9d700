package warehouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/nordlys/crmx/pkg/db/models"
)

// Store exposes the warehouse operations used by the pipeline stages.
// *DB satisfies it; tests substitute fakes.
type Store interface {
	Close() error
	DatabaseName() string
	GetConnection() driver.Conn

	Exec(ctx context.Context, query string, args ...interface{}) error
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	CheckTables(ctx context.Context) ([]string, error)
	SnapshotCount(ctx context.Context, table, snapshotID string) (uint64, error)

	InsertRows(ctx context.Context, table string, rows [][]any) (int, error)

	CreateSnapshot(ctx context.Context, snapshotID, triggeredBy string) error
	UpdateSnapshot(ctx context.Context, snapshotID, status, notes string) error
	GetSnapshot(ctx context.Context, snapshotID string) (*models.SnapshotRegistryEntry, error)
	LatestSnapshot(ctx context.Context) (*models.SnapshotRegistryEntry, error)
	ListSnapshots(ctx context.Context, limit int) ([]models.SnapshotRegistryEntry, error)

	ReplaceStageMappings(ctx context.Context, rows []*models.StageMapping) error
	ReplaceDealStageReference(ctx context.Context, rows []*models.DealStageReference) error
}

var _ Store = (*DB)(nil)
