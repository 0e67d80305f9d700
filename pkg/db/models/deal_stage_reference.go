package models

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableDealStageReference = "hs_deal_stage_reference"

var DealStageReferenceColumns = []ColumnDef{
	{Name: "pipeline_id", Type: "String"},
	{Name: "pipeline_label", Type: "Nullable(String)"},
	{Name: "stage_id", Type: "String"},
	{Name: "stage_label", Type: "Nullable(String)"},
	{Name: "is_closed", Type: "Bool"},
	{Name: "probability", Type: "Float64"},
	{Name: "display_order", Type: "Int32"},
}

// DealStageReference mirrors the CRM's deal pipeline definitions. Scoring
// uses is_closed to exclude deals already closed from the join. Reference
// data, truncate + reload on refresh.
type DealStageReference struct {
	PipelineID    string  `ch:"pipeline_id"`
	PipelineLabel *string `ch:"pipeline_label"`
	StageID       string  `ch:"stage_id"`
	StageLabel    *string `ch:"stage_label"`
	IsClosed      bool    `ch:"is_closed"`
	Probability   float64 `ch:"probability"`
	DisplayOrder  int32   `ch:"display_order"`
}

func InitDealStageReference(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY (pipeline_id, stage_id)
	`, TableDealStageReference, ColumnsToSchemaSQL(DealStageReferenceColumns))
	return db.Exec(ctx, query)
}

func InsertDealStageReferences(ctx context.Context, db driver.Conn, rows []*DealStageReference) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (pipeline_id, pipeline_label, stage_id, stage_label, is_closed, probability, display_order) VALUES`, TableDealStageReference)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		err = batch.Append(
			row.PipelineID,
			row.PipelineLabel,
			row.StageID,
			row.StageLabel,
			row.IsClosed,
			row.Probability,
			row.DisplayOrder,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}
