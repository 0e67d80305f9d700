package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
)

// DefaultSettlingDelay is the pause between the unit-score insert and the
// aggregation query, tolerating the warehouse's ingest lag without a
// polling loop.
const DefaultSettlingDelay = 5 * time.Second

// Processor runs the scoring stage for one snapshot at a time.
//
// Re-running a snapshot appends duplicate rows: the stage itself gives no
// idempotence guarantee, at-most-once invocation is the caller's job (the
// event handler claims snapshots through the registry).
type Processor struct {
	Store         warehouse.Store
	Logger        *zap.Logger
	SettlingDelay time.Duration
}

// Results reports both scoring steps. The steps are independent units: a
// history failure leaves UnitRecords valid and is reported distinctly.
type Results struct {
	SnapshotID      string        `json:"snapshot_id"`
	UnitRecords     uint64        `json:"unit_records"`
	HistoryRecords  uint64        `json:"history_records"`
	ProcessingTime  time.Duration `json:"processing_time"`
}

// ScoreSnapshot processes one snapshot: reload the stage-mapping rules,
// derive and append pipeline units, then (after the settling delay)
// aggregate them into score history.
func (p *Processor) ScoreSnapshot(ctx context.Context, snapshotID string) (*Results, error) {
	start := time.Now()
	logger := p.Logger.With(zap.String("snapshot_id", snapshotID))
	logger.Info("Starting scoring run")

	rules, err := LoadStageRules()
	if err != nil {
		return nil, err
	}
	if err := p.Store.ReplaceStageMappings(ctx, rules); err != nil {
		return nil, fmt.Errorf("stage mapping reload: %w", err)
	}

	results := &Results{SnapshotID: snapshotID}

	unitCount, err := p.processUnitScores(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("unit score step: %w", err)
	}
	results.UnitRecords = unitCount
	logger.Info("Unit-score step complete", zap.Uint64("records", unitCount))

	delay := p.SettlingDelay
	if delay <= 0 {
		delay = DefaultSettlingDelay
	}
	logger.Info("Waiting for pipeline units to settle", zap.Duration("delay", delay))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return results, ctx.Err()
	}

	historyCount, err := p.processScoreHistory(ctx, snapshotID)
	if err != nil {
		// The unit step already committed; report the history step on its own.
		return results, fmt.Errorf("score history step: %w", err)
	}
	results.HistoryRecords = historyCount
	results.ProcessingTime = time.Since(start)

	logger.Info("Scoring run complete",
		zap.Uint64("unit_records", results.UnitRecords),
		zap.Uint64("history_records", results.HistoryRecords),
		zap.Duration("took", results.ProcessingTime),
	)
	return results, nil
}

// processUnitScores joins companies against their open deals, derives the
// combined stage, attaches scores from the rule table, and appends to the
// pipeline units table. Companies whose combined stage has no rule get null
// stage_level/adjusted_score rather than failing.
func (p *Processor) processUnitScores(ctx context.Context, snapshotID string) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(snapshot_id, snapshot_timestamp, company_id, deal_id, owner_id,
			 lifecycle_stage, lead_status, deal_stage, combined_stage,
			 stage_level, adjusted_score, stage_source)
		SELECT
			j.snapshot_id,
			now64(6),
			j.company_id,
			j.deal_id,
			j.owner_id,
			j.lifecycle_stage,
			j.lead_status,
			j.deal_stage,
			j.combined_stage,
			sm.stage_level,
			sm.adjusted_score,
			j.stage_source
		FROM (
			SELECT
				c.snapshot_id AS snapshot_id,
				c.company_id AS company_id,
				d.deal_id AS deal_id,
				c.hubspot_owner_id AS owner_id,
				c.lifecycle_stage AS lifecycle_stage,
				c.lead_status AS lead_status,
				d.deal_stage AS deal_stage,
				CASE
					WHEN c.lifecycle_stage = 'lead'
						THEN concat('lead/', if(c.lead_status = '', 'unknown', c.lead_status))
					WHEN c.lifecycle_stage = 'opportunity'
						THEN concat('opportunity/', if(d.deal_stage IS NULL OR d.deal_stage = '', 'missing', d.deal_stage))
					WHEN c.lifecycle_stage IN ('salesqualifiedlead', 'sales qualified lead')
						THEN 'salesqualifiedlead'
					WHEN c.lifecycle_stage = 'closed-won' THEN 'closed-won'
					WHEN c.lifecycle_stage = 'disqualified' THEN 'disqualified'
					ELSE 'unmapped'
				END AS combined_stage,
				if(d.deal_id IS NULL, 'company', 'deal') AS stage_source
			FROM (
				SELECT
					snapshot_id,
					company_id,
					hubspot_owner_id,
					lowerUTF8(coalesce(lifecycle_stage, '')) AS lifecycle_stage,
					replaceAll(lowerUTF8(coalesce(lead_status, '')), ' ', '_') AS lead_status
				FROM %s
				WHERE snapshot_id = ?
			) AS c
			LEFT JOIN (
				SELECT
					d.deal_id AS deal_id,
					d.associated_company_id AS associated_company_id,
					lowerUTF8(coalesce(d.deal_stage, '')) AS deal_stage
				FROM %s AS d
				LEFT JOIN %s AS ref ON d.deal_stage = ref.stage_id
				WHERE d.snapshot_id = ? AND coalesce(ref.is_closed, false) = false
			) AS d ON d.associated_company_id = c.company_id
		) AS j
		LEFT JOIN %s AS sm ON sm.combined_stage = j.combined_stage
	`, models.TablePipelineUnits, models.TableCompanies, models.TableDeals,
		models.TableDealStageReference, models.TableStageMapping)

	if err := p.Store.Exec(ctx, query, snapshotID, snapshotID); err != nil {
		return 0, err
	}

	return p.Store.SnapshotCount(ctx, models.TablePipelineUnits, snapshotID)
}

// processScoreHistory aggregates the snapshot's pipeline units per
// (owner, combined stage) and appends the rollup. Units without a score are
// excluded; they carry no rule to aggregate.
func (p *Processor) processScoreHistory(ctx context.Context, snapshotID string) (uint64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s
			(snapshot_id, owner_id, combined_stage, num_companies, total_score, snapshot_timestamp)
		SELECT
			snapshot_id,
			owner_id,
			combined_stage,
			uniqExact(company_id) AS num_companies,
			sum(adjusted_score) AS total_score,
			now64(6)
		FROM %s
		WHERE snapshot_id = ? AND adjusted_score IS NOT NULL
		GROUP BY snapshot_id, owner_id, combined_stage
	`, models.TableScoreHistory, models.TablePipelineUnits)

	if err := p.Store.Exec(ctx, query, snapshotID); err != nil {
		return 0, err
	}

	return p.Store.SnapshotCount(ctx, models.TableScoreHistory, snapshotID)
}
