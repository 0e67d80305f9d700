package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableScoreHistory = "hs_pipeline_score_history"

var ScoreHistoryColumns = []ColumnDef{
	{Name: "snapshot_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "owner_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "combined_stage", Type: "String", Codec: "ZSTD(1)"},
	{Name: "num_companies", Type: "UInt64"},
	{Name: "total_score", Type: "Float64"},
	{Name: "snapshot_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// ScoreHistory is the per-snapshot rollup of pipeline units grouped by
// (snapshot_id, owner_id, combined_stage). Append-only.
type ScoreHistory struct {
	SnapshotID        string    `ch:"snapshot_id"`
	OwnerID           *string   `ch:"owner_id"`
	CombinedStage     string    `ch:"combined_stage"`
	NumCompanies      uint64    `ch:"num_companies"`
	TotalScore        float64   `ch:"total_score"`
	SnapshotTimestamp time.Time `ch:"snapshot_timestamp"`
}

func InitScoreHistory(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY (snapshot_id, combined_stage)
	`, TableScoreHistory, ColumnsToSchemaSQL(ScoreHistoryColumns))
	return db.Exec(ctx, query)
}
