package models

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableStageMapping = "hs_stage_mapping"

var StageMappingColumns = []ColumnDef{
	{Name: "lifecycle_stage", Type: "Nullable(String)"},
	{Name: "lead_status", Type: "Nullable(String)"},
	{Name: "deal_stage", Type: "Nullable(String)"},
	{Name: "combined_stage", Type: "String"},
	{Name: "stage_level", Type: "Int32"},
	{Name: "adjusted_score", Type: "Float64"},
}

// StageMapping is the scoring rule set: a lookup from the
// (lifecycle_stage, lead_status, deal_stage) triple to a combined_stage
// label, its ordinal rank, and a score. The table is replaced wholesale
// (truncate + reload) on every scoring run and keeps no history.
type StageMapping struct {
	LifecycleStage *string `ch:"lifecycle_stage" yaml:"lifecycle_stage"`
	LeadStatus     *string `ch:"lead_status" yaml:"lead_status"`
	DealStage      *string `ch:"deal_stage" yaml:"deal_stage"`
	CombinedStage  string  `ch:"combined_stage" yaml:"combined_stage"`
	StageLevel     int32   `ch:"stage_level" yaml:"stage_level"`
	AdjustedScore  float64 `ch:"adjusted_score" yaml:"adjusted_score"`
}

func InitStageMapping(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY combined_stage
	`, TableStageMapping, ColumnsToSchemaSQL(StageMappingColumns))
	return db.Exec(ctx, query)
}

// InsertStageMappings appends rule rows. Callers truncate first; the table
// holds exactly one generation of rules at a time.
func InsertStageMappings(ctx context.Context, db driver.Conn, rows []*StageMapping) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (lifecycle_stage, lead_status, deal_stage, combined_stage, stage_level, adjusted_score) VALUES`, TableStageMapping)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		err = batch.Append(
			row.LifecycleStage,
			row.LeadStatus,
			row.DealStage,
			row.CombinedStage,
			row.StageLevel,
			row.AdjustedScore,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}
