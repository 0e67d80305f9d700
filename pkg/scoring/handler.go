package scoring

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
)

// Handler consumes snapshot-completed events and drives the scoring stage,
// acknowledging progress through the snapshot registry.
type Handler struct {
	Store     warehouse.Store
	Processor *Processor
	Logger    *zap.Logger
}

// HandleEvent processes one decoded envelope. Unknown event types are
// skipped silently; the stream carries failure events too.
func (h *Handler) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.Type != events.TypeSnapshotCompleted {
		h.Logger.Debug("Skipping event", zap.String("type", env.Type))
		return nil
	}

	payload, err := events.DecodeSnapshotCompleted(env)
	if err != nil {
		return err
	}

	return h.ProcessSnapshot(ctx, payload.SnapshotID)
}

// ProcessSnapshot claims a snapshot and runs scoring on it.
//
// The claim is best-effort: the registry read and the scoring_in_progress
// write are not atomic, so two scorers racing the same snapshot can both
// pass the status check and double-process it (last-write-wins on status).
// The claim narrows the window; operational discipline closes it.
func (h *Handler) ProcessSnapshot(ctx context.Context, snapshotID string) error {
	logger := h.Logger.With(zap.String("snapshot_id", snapshotID))

	entry, err := h.Store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("read registry for %s: %w", snapshotID, err)
	}
	if entry == nil {
		return fmt.Errorf("snapshot %s is not registered", snapshotID)
	}

	switch entry.Status {
	case models.StatusScoringInProgress, models.StatusScoringCompleted:
		logger.Warn("Snapshot already claimed, skipping", zap.String("status", entry.Status))
		return nil
	}

	if err := h.Store.UpdateSnapshot(ctx, snapshotID, models.StatusScoringInProgress, "claimed by scorer"); err != nil {
		return fmt.Errorf("claim snapshot %s: %w", snapshotID, err)
	}

	results, err := h.Processor.ScoreSnapshot(ctx, snapshotID)
	if err != nil {
		logger.Error("Scoring failed", zap.Error(err))
		if updErr := h.Store.UpdateSnapshot(ctx, snapshotID, models.StatusScoringFailed, err.Error()); updErr != nil {
			logger.Error("Failed to record scoring failure in registry", zap.Error(updErr))
		}
		return err
	}

	notes := fmt.Sprintf("units=%d history=%d took=%s",
		results.UnitRecords, results.HistoryRecords, results.ProcessingTime)
	if err := h.Store.UpdateSnapshot(ctx, snapshotID, models.StatusScoringCompleted, notes); err != nil {
		return fmt.Errorf("record scoring completion for %s: %w", snapshotID, err)
	}

	return nil
}
