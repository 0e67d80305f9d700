package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
)

// OrphanCriticalRatio is the orphaned-row fraction at which a referential
// issue escalates from warning to critical.
const OrphanCriticalRatio = 0.05

// Verifier runs the declared constraint set against one dataset.
type Verifier struct {
	Store  warehouse.Store
	Logger *zap.Logger
}

// Run executes every declared check and aggregates the findings. A check
// whose query fails becomes a warning-severity issue; it never aborts the
// remaining checks. The report passes when no critical issues were found.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	if err := models.ValidateRegistry(); err != nil {
		return nil, fmt.Errorf("constraint declarations are invalid: %w", err)
	}

	report := &Report{
		Timestamp:     time.Now().UTC(),
		Dataset:       v.Store.DatabaseName(),
		TablesChecked: len(models.Registry),
	}

	v.checkReferential(ctx, report)
	v.checkRequired(ctx, report)
	v.checkUnique(ctx, report)
	v.checkFormats(ctx, report)
	v.checkEnums(ctx, report)

	report.Passed = report.Critical == 0

	v.Logger.Info("Integrity verification complete",
		zap.String("dataset", report.Dataset),
		zap.Int("issues", len(report.Issues)),
		zap.Int("critical", report.Critical),
		zap.Int("warnings", report.Warnings),
		zap.Bool("passed", report.Passed),
	)
	return report, nil
}

// checkReferential counts child rows whose non-null key is absent from the
// parent's value set. Severity scales with the orphaned fraction.
func (v *Verifier) checkReferential(ctx context.Context, report *Report) {
	for _, fk := range models.ForeignKeys {
		orphanQuery := fmt.Sprintf(`
			SELECT count() AS cnt
			FROM %s
			WHERE %s IS NOT NULL AND %s != ''
			  AND %s NOT IN (SELECT %s FROM %s)
		`, fk.ChildTable, fk.ChildColumn, fk.ChildColumn, fk.ChildColumn, fk.ParentColumn, fk.ParentTable)

		orphans, err := v.count(ctx, orphanQuery)
		if err != nil {
			v.reportCheckError(report, fk.ChildTable, fk.ChildColumn, CheckReferential, err)
			continue
		}
		if orphans == 0 {
			continue
		}

		totalQuery := fmt.Sprintf(`
			SELECT count() AS cnt
			FROM %s
			WHERE %s IS NOT NULL AND %s != ''
		`, fk.ChildTable, fk.ChildColumn, fk.ChildColumn)

		total, err := v.count(ctx, totalQuery)
		if err != nil {
			v.reportCheckError(report, fk.ChildTable, fk.ChildColumn, CheckReferential, err)
			continue
		}

		report.add(Issue{
			Table:    fk.ChildTable,
			Column:   fk.ChildColumn,
			Check:    CheckReferential,
			Count:    orphans,
			Severity: orphanSeverity(orphans, total),
			Description: fmt.Sprintf("%s: %d of %d values do not resolve to %s.%s",
				fk.Description, orphans, total, fk.ParentTable, fk.ParentColumn),
		})
	}
}

// orphanSeverity classifies a referential finding: an orphaned fraction at
// or above OrphanCriticalRatio escalates to critical.
func orphanSeverity(orphans, total uint64) string {
	if total > 0 && float64(orphans)/float64(total) >= OrphanCriticalRatio {
		return SeverityCritical
	}
	return SeverityWarning
}

// checkRequired counts null or empty values in declared required columns.
func (v *Verifier) checkRequired(ctx context.Context, report *Report) {
	for table, columns := range models.RequiredFields {
		for _, column := range columns {
			query := fmt.Sprintf(`
				SELECT count() AS cnt
				FROM %s
				WHERE %s IS NULL OR %s = ''
			`, table, column, column)

			missing, err := v.count(ctx, query)
			if err != nil {
				v.reportCheckError(report, table, column, CheckRequired, err)
				continue
			}
			if missing == 0 {
				continue
			}

			report.add(Issue{
				Table:       table,
				Column:      column,
				Check:       CheckRequired,
				Count:       missing,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("%d rows have null/empty %s", missing, column),
			})
		}
	}
}

// checkUnique counts duplicated tuples for each declared unique constraint.
func (v *Verifier) checkUnique(ctx context.Context, report *Report) {
	for table, tuples := range models.UniqueConstraints {
		for _, tuple := range tuples {
			cols := strings.Join(tuple, ", ")
			query := fmt.Sprintf(`
				SELECT count() AS cnt
				FROM (
					SELECT %s
					FROM %s
					GROUP BY %s
					HAVING count() > 1
				)
			`, cols, table, cols)

			duplicates, err := v.count(ctx, query)
			if err != nil {
				v.reportCheckError(report, table, cols, CheckUnique, err)
				continue
			}
			if duplicates == 0 {
				continue
			}

			report.add(Issue{
				Table:       table,
				Column:      cols,
				Check:       CheckUnique,
				Count:       duplicates,
				Severity:    SeverityCritical,
				Description: fmt.Sprintf("%d duplicated (%s) tuples", duplicates, cols),
			})
		}
	}
}

// checkFormats counts non-null values that fail their declared pattern.
func (v *Verifier) checkFormats(ctx context.Context, report *Report) {
	for _, rule := range models.FormatRules {
		query := fmt.Sprintf(`
			SELECT count() AS cnt
			FROM %s
			WHERE %s IS NOT NULL AND %s != ''
			  AND NOT match(%s, ?)
		`, rule.Table, rule.Column, rule.Column, rule.Column)

		invalid, err := v.count(ctx, query, rule.Pattern)
		if err != nil {
			v.reportCheckError(report, rule.Table, rule.Column, CheckFormat, err)
			continue
		}
		if invalid == 0 {
			continue
		}

		report.add(Issue{
			Table:       rule.Table,
			Column:      rule.Column,
			Check:       CheckFormat,
			Count:       invalid,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%d values do not match the %s pattern", invalid, rule.Name),
		})
	}
}

// checkEnums counts enum values that escaped lowercase normalization at
// ingest. The scoring joins match these strings literally, so a stray
// "Lead" silently stops scoring.
func (v *Verifier) checkEnums(ctx context.Context, report *Report) {
	for table, columns := range models.EnumColumns {
		for _, column := range columns {
			query := fmt.Sprintf(`
				SELECT count() AS cnt
				FROM %s
				WHERE %s IS NOT NULL AND %s != ''
				  AND %s != lowerUTF8(%s)
			`, table, column, column, column, column)

			nonLower, err := v.count(ctx, query)
			if err != nil {
				v.reportCheckError(report, table, column, CheckEnum, err)
				continue
			}
			if nonLower == 0 {
				continue
			}

			report.add(Issue{
				Table:       table,
				Column:      column,
				Check:       CheckEnum,
				Count:       nonLower,
				Severity:    SeverityWarning,
				Description: fmt.Sprintf("%d values are not lowercase-normalized", nonLower),
			})
		}
	}
}

func (v *Verifier) count(ctx context.Context, query string, args ...interface{}) (uint64, error) {
	var rows []struct {
		Count uint64 `ch:"cnt"`
	}
	if err := v.Store.Select(ctx, &rows, query, args...); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

// reportCheckError records a failed check as a finding of its own so the
// remaining checks still run.
func (v *Verifier) reportCheckError(report *Report, table, column, check string, err error) {
	v.Logger.Warn("Integrity check failed to execute",
		zap.String("table", table),
		zap.String("column", column),
		zap.String("check", check),
		zap.Error(err),
	)
	report.add(Issue{
		Table:       table,
		Column:      column,
		Check:       CheckError,
		Count:       0,
		Severity:    SeverityWarning,
		Description: fmt.Sprintf("%s check could not run: %v", check, err),
	})
}
