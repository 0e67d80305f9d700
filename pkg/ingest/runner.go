package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
)

// SnapshotIDFormat is the canonical snapshot id layout: an RFC3339 UTC
// second timestamp.
const SnapshotIDFormat = "2006-01-02T15:04:05Z"

// CRMSource is the slice of the CRM client the runner needs; the full
// client satisfies it and tests substitute fakes.
type CRMSource interface {
	FetchObjects(ctx context.Context, objectType string, filters []crm.Filter, limit int, properties []string) (crm.FetchResult, error)
	FetchOwners(ctx context.Context) ([]crm.Owner, error)
	FetchDealPipelines(ctx context.Context) ([]crm.Pipeline, error)
}

// Options controls one ingestion run.
type Options struct {
	// SnapshotID tags every loaded row; empty means "now".
	SnapshotID string

	// Limit caps records fetched per entity type; 0 means unlimited.
	Limit int

	// Filters narrows the company search; empty fetches everything.
	Filters []crm.Filter

	// DryRun previews the mapped rows without writing anything.
	DryRun bool

	// TriggeredBy is recorded in the snapshot registry.
	TriggeredBy string
}

// Report summarizes one run for the HTTP response and the completion event.
type Report struct {
	SnapshotID      string                `json:"snapshot_id"`
	DryRun          bool                  `json:"dry_run"`
	Counts          map[string]uint64     `json:"counts,omitempty"`
	ReferenceCounts map[string]uint64     `json:"reference_counts,omitempty"`
	APICalls        map[string]int        `json:"api_calls"`
	Previews        []*warehouse.Preview  `json:"previews,omitempty"`
}

// Runner executes the ingestion pipeline: fetch, map, load, registry,
// event. One Runner is bound to one dataset.
type Runner struct {
	Store     warehouse.Store
	CRM       CRMSource
	Publisher events.Publisher
	Logger    *zap.Logger
	TestMode  bool
}

// Run performs one ingestion. Entity types are processed sequentially; a
// fetch failure empties that entity only, while a load failure marks the
// snapshot ingest_failed and returns the error.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	now := time.Now().UTC()
	snapshotID := opts.SnapshotID
	if snapshotID == "" {
		snapshotID = now.Format(SnapshotIDFormat)
	}
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	logger := r.Logger.With(zap.String("snapshot_id", snapshotID))
	logger.Info("Starting ingestion run",
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("test_mode", r.TestMode),
		zap.Int("limit", opts.Limit),
	)

	if !opts.DryRun {
		if err := r.Store.CreateSnapshot(ctx, snapshotID, triggeredBy); err != nil {
			return nil, fmt.Errorf("register snapshot %s: %w", snapshotID, err)
		}
	}

	report := &Report{
		SnapshotID:      snapshotID,
		DryRun:          opts.DryRun,
		Counts:          map[string]uint64{},
		ReferenceCounts: map[string]uint64{},
		APICalls:        map[string]int{},
	}

	// Fetch. A failed entity yields an empty result and the run continues.
	companies, err := r.CRM.FetchObjects(ctx, crm.ObjectCompanies, opts.Filters, opts.Limit, Properties(models.EntityCompanies))
	if err != nil {
		return nil, err
	}
	report.APICalls[models.EntityCompanies] = companies.CallCount

	deals, err := r.CRM.FetchObjects(ctx, crm.ObjectDeals, nil, opts.Limit, Properties(models.EntityDeals))
	if err != nil {
		return nil, err
	}
	report.APICalls[models.EntityDeals] = deals.CallCount

	owners, err := r.CRM.FetchOwners(ctx)
	if err != nil {
		logger.Error("Owner fetch failed, continuing without owners", zap.Error(err))
		owners = nil
	}
	report.APICalls[models.EntityOwners]++

	// Map rows onto the registry's column order.
	companyRows, err := MapRecords(models.EntityCompanies, companies.Records, snapshotID, now)
	if err != nil {
		return nil, r.fail(ctx, report, snapshotID, err)
	}
	dealRows, err := MapRecords(models.EntityDeals, deals.Records, snapshotID, now)
	if err != nil {
		return nil, r.fail(ctx, report, snapshotID, err)
	}
	ownerRows := MapOwners(owners, now)

	mapped := []struct {
		table string
		rows  [][]any
	}{
		{models.TableCompanies, companyRows},
		{models.TableDeals, dealRows},
		{models.TableOwners, ownerRows},
	}

	if opts.DryRun {
		for _, m := range mapped {
			preview, err := warehouse.PreviewRows(m.table, m.rows)
			if err != nil {
				return nil, err
			}
			report.Previews = append(report.Previews, preview)
			logger.Info("Dry run preview",
				zap.String("table", preview.Table),
				zap.Int("rows", preview.RowCount),
				zap.Any("non_null_pct", preview.NonNullPct),
			)
		}
		return report, nil
	}

	// Load. A batch failure halts that entity and fails the run.
	for _, m := range mapped {
		inserted, err := r.Store.InsertRows(ctx, m.table, m.rows)
		report.Counts[m.table] = uint64(inserted)
		if err != nil {
			return nil, r.fail(ctx, report, snapshotID, fmt.Errorf("load %s: %w", m.table, err))
		}
		logger.Info("Entity loaded", zap.String("table", m.table), zap.Int("rows", inserted))
	}

	// Refresh the deal stage reference from the CRM's pipeline definitions.
	// Reference data is shared across snapshots; a refresh failure is logged
	// and the previous generation stays in place.
	if pipelines, err := r.CRM.FetchDealPipelines(ctx); err != nil {
		logger.Error("Deal pipeline refresh failed, keeping previous reference data", zap.Error(err))
	} else if err := r.Store.ReplaceDealStageReference(ctx, MapPipelines(pipelines)); err != nil {
		logger.Error("Deal stage reference reload failed", zap.Error(err))
	} else {
		report.ReferenceCounts[models.TableDealStageReference] = uint64(len(MapPipelines(pipelines)))
	}

	notes := fmt.Sprintf("companies=%d deals=%d owners=%d",
		report.Counts[models.TableCompanies],
		report.Counts[models.TableDeals],
		report.Counts[models.TableOwners],
	)
	if err := r.Store.UpdateSnapshot(ctx, snapshotID, models.StatusIngested, notes); err != nil {
		return nil, fmt.Errorf("update snapshot %s: %w", snapshotID, err)
	}

	r.publishCompleted(ctx, report, triggeredBy)

	logger.Info("Ingestion run complete", zap.Any("counts", report.Counts))
	return report, nil
}

// fail records ingest_failed in the registry, emits a failure event, and
// returns the original error for the caller to escalate.
func (r *Runner) fail(ctx context.Context, report *Report, snapshotID string, cause error) error {
	r.Logger.Error("Ingestion run failed",
		zap.String("snapshot_id", snapshotID),
		zap.Error(cause),
	)

	if err := r.Store.UpdateSnapshot(ctx, snapshotID, models.StatusIngestFailed, cause.Error()); err != nil {
		r.Logger.Error("Failed to record ingest failure in registry", zap.Error(err))
	}

	if r.Publisher != nil {
		if err := r.Publisher.PublishSnapshotFailed(ctx, events.SnapshotFailed{
			SnapshotID: snapshotID,
			Error:      cause.Error(),
		}); err != nil {
			r.Logger.Warn("Failed to publish snapshot failed event", zap.Error(err))
		}
	}

	return cause
}

// publishCompleted emits the completion event. Best-effort: scoring can be
// re-triggered manually, so a publish failure never fails the run.
func (r *Runner) publishCompleted(ctx context.Context, report *Report, triggeredBy string) {
	if r.Publisher == nil {
		return
	}

	var totalData, totalRef uint64
	for _, n := range report.Counts {
		totalData += n
	}
	for _, n := range report.ReferenceCounts {
		totalRef += n
	}

	payload := events.SnapshotCompleted{
		SnapshotID:      report.SnapshotID,
		DataTables:      report.Counts,
		ReferenceTables: report.ReferenceCounts,
		Metadata: events.SnapshotMetadata{
			TriggeredBy:           triggeredBy,
			TestMode:              r.TestMode,
			TotalDataRecords:      totalData,
			TotalReferenceRecords: totalRef,
		},
	}

	if err := r.Publisher.PublishSnapshotCompleted(ctx, payload); err != nil {
		r.Logger.Warn("Failed to publish snapshot completed event",
			zap.String("snapshot_id", report.SnapshotID),
			zap.Error(err),
		)
	}
}
