package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TablePipelineUnits = "hs_pipeline_units_snapshot"

var PipelineUnitColumns = []ColumnDef{
	{Name: "snapshot_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "snapshot_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "company_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "deal_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "owner_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "lifecycle_stage", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "lead_status", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "deal_stage", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "combined_stage", Type: "String", Codec: "ZSTD(1)"},
	{Name: "stage_level", Type: "Nullable(Int32)"},
	{Name: "adjusted_score", Type: "Nullable(Float64)"},
	{Name: "stage_source", Type: "String", Codec: "ZSTD(1)"},
}

// PipelineUnit is one scored (company, optionally joined deal) row per
// snapshot. Append-only; the scoring query writes these via
// INSERT ... SELECT, so this struct exists for reads and tests.
// stage_level/adjusted_score are null when the derived combined_stage has no
// rule in hs_stage_mapping; that is data to report on, not a failure.
type PipelineUnit struct {
	SnapshotID        string    `ch:"snapshot_id"`
	SnapshotTimestamp time.Time `ch:"snapshot_timestamp"`
	CompanyID         string    `ch:"company_id"`
	DealID            *string   `ch:"deal_id"`
	OwnerID           *string   `ch:"owner_id"`
	LifecycleStage    *string   `ch:"lifecycle_stage"`
	LeadStatus        *string   `ch:"lead_status"`
	DealStage         *string   `ch:"deal_stage"`
	CombinedStage     string    `ch:"combined_stage"`
	StageLevel        *int32    `ch:"stage_level"`
	AdjustedScore     *float64  `ch:"adjusted_score"`
	StageSource       string    `ch:"stage_source"` // "company" or "deal"
}

func InitPipelineUnits(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY (snapshot_id, company_id)
	`, TablePipelineUnits, ColumnsToSchemaSQL(PipelineUnitColumns))
	return db.Exec(ctx, query)
}
