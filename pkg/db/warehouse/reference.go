package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
)

// ReplaceStageMappings truncates and reloads the scoring rule set. The table
// carries no history: each scoring run installs exactly one generation of
// rules before the join query runs.
func (db *DB) ReplaceStageMappings(ctx context.Context, rows []*models.StageMapping) error {
	if err := db.truncate(ctx, models.TableStageMapping); err != nil {
		return err
	}

	if err := models.InsertStageMappings(ctx, db.Db, rows); err != nil {
		return fmt.Errorf("reload %s: %w", models.TableStageMapping, err)
	}

	db.Logger.Info("Stage mapping reloaded",
		zap.Int("rules", len(rows)),
	)
	return nil
}

// ReplaceDealStageReference truncates and reloads the deal pipeline
// reference table from freshly fetched CRM pipeline definitions.
func (db *DB) ReplaceDealStageReference(ctx context.Context, rows []*models.DealStageReference) error {
	if err := db.truncate(ctx, models.TableDealStageReference); err != nil {
		return err
	}

	if err := models.InsertDealStageReferences(ctx, db.Db, rows); err != nil {
		return fmt.Errorf("reload %s: %w", models.TableDealStageReference, err)
	}

	db.Logger.Info("Deal stage reference reloaded",
		zap.Int("stages", len(rows)),
	)
	return nil
}

func (db *DB) truncate(ctx context.Context, table string) error {
	query := fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}
