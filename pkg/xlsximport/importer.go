package xlsximport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
)

// TriggeredBy is recorded in the snapshot registry for imported snapshots.
const TriggeredBy = "import"

// Importer loads spreadsheet snapshots into the warehouse.
type Importer struct {
	Store  warehouse.Store
	Mapper *Mapper
	Logger *zap.Logger
}

// Result summarizes an import run: per-snapshot row counts by table, plus
// dry-run previews when nothing was written.
type Result struct {
	DryRun    bool
	Snapshots map[string]map[string]uint64
	Previews  []*warehouse.Preview
}

// ValidationReport describes the workbook's structure against the
// configured snapshot sheets and the auto-detection heuristics.
type ValidationReport struct {
	Sheets   []string
	Found    []string
	Missing  []string
	Detected map[string]Kind
}

// RunSnapshots imports every configured snapshot sheet pair. All expected
// sheets must exist; run Validate first to see what a workbook is missing.
func (im *Importer) RunSnapshots(ctx context.Context, path string, dryRun bool) (*Result, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	var missing []string
	for _, cfg := range SnapshotsToImport {
		if !wb.HasSheet(cfg.CompanySheet) {
			missing = append(missing, cfg.CompanySheet)
		}
		if !wb.HasSheet(cfg.DealSheet) {
			missing = append(missing, cfg.DealSheet)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("workbook is missing %d expected sheets: %v", len(missing), missing)
	}

	result := &Result{DryRun: dryRun, Snapshots: map[string]map[string]uint64{}}
	for _, cfg := range SnapshotsToImport {
		ts, err := time.Parse("2006-01-02", cfg.Date)
		if err != nil {
			return nil, fmt.Errorf("snapshot date %q: %w", cfg.Date, err)
		}

		companySheet, err := wb.Sheet(cfg.CompanySheet)
		if err != nil {
			return nil, err
		}
		dealSheet, err := wb.Sheet(cfg.DealSheet)
		if err != nil {
			return nil, err
		}

		snapshotID := cfg.SnapshotID()
		companies, err := im.Mapper.MapCompanies(companySheet, snapshotID, ts)
		if err != nil {
			return nil, err
		}
		deals, err := im.Mapper.MapDeals(dealSheet, snapshotID, ts)
		if err != nil {
			return nil, err
		}

		if err := im.load(ctx, result, snapshotID, companies, deals); err != nil {
			return nil, err
		}
	}

	im.Logger.Info("Snapshot import complete",
		zap.Int("snapshots", len(result.Snapshots)),
		zap.Bool("dry_run", dryRun),
	)
	return result, nil
}

// RunAuto detects company and deal sheets heuristically and imports them
// all under a single snapshot id; empty means "now". Multiple sheets of the
// same kind are concatenated.
func (im *Importer) RunAuto(ctx context.Context, path, snapshotID string, dryRun bool) (*Result, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	now := time.Now().UTC()
	if snapshotID == "" {
		snapshotID = now.Format("2006-01-02T15:04:05Z")
	}

	var companies, deals [][]any
	detected := 0
	for _, name := range wb.SheetNames() {
		sheet, err := wb.Sheet(name)
		if err != nil {
			return nil, err
		}

		switch DetectKind(sheet) {
		case KindCompanies:
			rows, err := im.Mapper.MapCompanies(sheet, snapshotID, now)
			if err != nil {
				return nil, err
			}
			companies = append(companies, rows...)
			detected++
		case KindDeals:
			rows, err := im.Mapper.MapDeals(sheet, snapshotID, now)
			if err != nil {
				return nil, err
			}
			deals = append(deals, rows...)
			detected++
		default:
			im.Logger.Debug("Sheet not recognized as an export", zap.String("sheet", name))
		}
	}
	if detected == 0 {
		return nil, fmt.Errorf("no company or deal sheets detected in %s", path)
	}

	result := &Result{DryRun: dryRun, Snapshots: map[string]map[string]uint64{}}
	if err := im.load(ctx, result, snapshotID, companies, deals); err != nil {
		return nil, err
	}

	im.Logger.Info("Auto import complete",
		zap.String("snapshot_id", snapshotID),
		zap.Int("sheets", detected),
		zap.Bool("dry_run", dryRun),
	)
	return result, nil
}

// Validate reports the workbook's structure without touching the
// warehouse.
func (im *Importer) Validate(path string) (*ValidationReport, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	report := &ValidationReport{
		Sheets:   wb.SheetNames(),
		Detected: map[string]Kind{},
	}

	for _, cfg := range SnapshotsToImport {
		for _, name := range []string{cfg.CompanySheet, cfg.DealSheet} {
			if wb.HasSheet(name) {
				report.Found = append(report.Found, name)
			} else {
				report.Missing = append(report.Missing, name)
			}
		}
	}

	for _, name := range wb.SheetNames() {
		sheet, err := wb.Sheet(name)
		if err != nil {
			return nil, err
		}
		if kind := DetectKind(sheet); kind != KindUnknown {
			report.Detected[name] = kind
		}
	}
	return report, nil
}

// load writes one snapshot's rows, registering it first and recording the
// outcome. Dry runs preview instead of writing.
func (im *Importer) load(ctx context.Context, result *Result, snapshotID string, companies, deals [][]any) error {
	mapped := []struct {
		table string
		rows  [][]any
	}{
		{models.TableCompanies, companies},
		{models.TableDeals, deals},
	}

	if result.DryRun {
		for _, m := range mapped {
			preview, err := warehouse.PreviewRows(m.table, m.rows)
			if err != nil {
				return err
			}
			result.Previews = append(result.Previews, preview)
			im.Logger.Info("Dry run preview",
				zap.String("snapshot_id", snapshotID),
				zap.String("table", preview.Table),
				zap.Int("rows", preview.RowCount),
			)
		}
		return nil
	}

	if err := im.Store.CreateSnapshot(ctx, snapshotID, TriggeredBy); err != nil {
		return fmt.Errorf("register snapshot %s: %w", snapshotID, err)
	}

	counts := map[string]uint64{}
	for _, m := range mapped {
		inserted, err := im.Store.InsertRows(ctx, m.table, m.rows)
		counts[m.table] = uint64(inserted)
		if err != nil {
			if uerr := im.Store.UpdateSnapshot(ctx, snapshotID, models.StatusIngestFailed, err.Error()); uerr != nil {
				im.Logger.Error("Failed to record import failure in registry", zap.Error(uerr))
			}
			return fmt.Errorf("load %s for snapshot %s: %w", m.table, snapshotID, err)
		}
		im.Logger.Info("Sheet loaded",
			zap.String("snapshot_id", snapshotID),
			zap.String("table", m.table),
			zap.Int("rows", inserted),
		)
	}

	notes := fmt.Sprintf("companies=%d deals=%d", counts[models.TableCompanies], counts[models.TableDeals])
	if err := im.Store.UpdateSnapshot(ctx, snapshotID, models.StatusIngested, notes); err != nil {
		return fmt.Errorf("update snapshot %s: %w", snapshotID, err)
	}

	result.Snapshots[snapshotID] = counts
	return nil
}
