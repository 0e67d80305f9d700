package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
)

// InsertBatchSize is the fixed number of rows appended per batch.
const InsertBatchSize = 1000

// InsertRows appends mapped rows to a registry table in fixed-size batches.
// Each row must be aligned to the table's declared column order. A batch
// failure halts the remaining batches immediately; prior batches are not
// rolled back. The warehouse is append-only, so retrying a partially loaded
// entity requires a fresh snapshot_id.
func (db *DB) InsertRows(ctx context.Context, table string, rows [][]any) (int, error) {
	def, ok := models.Registry[table]
	if !ok {
		return 0, fmt.Errorf("table %s is not declared in the schema registry", table)
	}

	if len(rows) == 0 {
		return 0, nil
	}

	width := len(def.Columns)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES",
		table, strings.Join(models.ColumnsToNameList(def.Columns), ", "))

	inserted := 0
	for start := 0; start < len(rows); start += InsertBatchSize {
		end := start + InsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		if err := db.insertBatch(ctx, query, width, rows[start:end]); err != nil {
			return inserted, fmt.Errorf("insert batch %d-%d into %s: %w", start, end, table, err)
		}
		inserted = end

		db.Logger.Debug("Batch inserted",
			zap.String("table", table),
			zap.Int("rows", end-start),
			zap.Int("total", inserted),
		)
	}

	return inserted, nil
}

func (db *DB) insertBatch(ctx context.Context, query string, width int, rows [][]any) error {
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row has %d values, table declares %d columns", len(row), width)
		}
		if err := batch.Append(row...); err != nil {
			return err
		}
	}

	return batch.Send()
}

// Preview is the structural summary produced by a dry run. No warehouse
// writes happen; the caller logs or returns it as-is.
type Preview struct {
	Table      string             `json:"table"`
	RowCount   int                `json:"row_count"`
	Sample     map[string]any     `json:"sample,omitempty"`
	NonNullPct map[string]float64 `json:"non_null_pct"`
}

// PreviewRows computes a dry-run preview for mapped rows: row count, the
// first record keyed by column name, and the non-null percentage per key
// field (the table's required columns, or all columns when none declared).
func PreviewRows(table string, rows [][]any) (*Preview, error) {
	def, ok := models.Registry[table]
	if !ok {
		return nil, fmt.Errorf("table %s is not declared in the schema registry", table)
	}

	names := models.ColumnsToNameList(def.Columns)
	keyFields := models.RequiredFields[table]
	if len(keyFields) == 0 {
		keyFields = names
	}

	preview := &Preview{
		Table:      table,
		RowCount:   len(rows),
		NonNullPct: make(map[string]float64, len(keyFields)),
	}

	colIdx := make(map[string]int, len(names))
	for i, name := range names {
		colIdx[name] = i
	}

	if len(rows) > 0 {
		sample := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(rows[0]) {
				sample[name] = rows[0][i]
			}
		}
		preview.Sample = sample
	}

	for _, field := range keyFields {
		idx, ok := colIdx[field]
		if !ok {
			continue
		}
		nonNull := 0
		for _, row := range rows {
			if idx >= len(row) {
				continue
			}
			if !isNull(row[idx]) {
				nonNull++
			}
		}
		pct := 0.0
		if len(rows) > 0 {
			pct = float64(nonNull) / float64(len(rows)) * 100
		}
		preview.NonNullPct[field] = pct
	}

	return preview, nil
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case *string:
		return t == nil || *t == ""
	case *float64:
		return t == nil
	case *int32:
		return t == nil
	}
	return false
}
