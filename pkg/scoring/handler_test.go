package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
)

// fakeStore implements the slice of warehouse.Store the scoring stage
// touches; everything else panics through the embedded nil interface.
type fakeStore struct {
	warehouse.Store

	entry    *models.SnapshotRegistryEntry
	statuses []string

	execs     int
	execErrAt int // 1-based call number that fails; 0 = never
	counts    map[string]uint64
	replaced  int
}

func (f *fakeStore) GetSnapshot(_ context.Context, snapshotID string) (*models.SnapshotRegistryEntry, error) {
	if f.entry == nil || f.entry.SnapshotID != snapshotID {
		return nil, nil
	}
	return f.entry, nil
}

func (f *fakeStore) UpdateSnapshot(_ context.Context, _, status, _ string) error {
	f.statuses = append(f.statuses, status)
	if f.entry != nil {
		f.entry.Status = status
	}
	return nil
}

func (f *fakeStore) ReplaceStageMappings(_ context.Context, rows []*models.StageMapping) error {
	f.replaced = len(rows)
	return nil
}

func (f *fakeStore) Exec(_ context.Context, _ string, _ ...interface{}) error {
	f.execs++
	if f.execErrAt != 0 && f.execs == f.execErrAt {
		return errors.New("exec failed")
	}
	return nil
}

func (f *fakeStore) SnapshotCount(_ context.Context, table, _ string) (uint64, error) {
	return f.counts[table], nil
}

func testHandler(store *fakeStore) *Handler {
	return &Handler{
		Store: store,
		Processor: &Processor{
			Store:         store,
			Logger:        zap.NewNop(),
			SettlingDelay: time.Millisecond,
		},
		Logger: zap.NewNop(),
	}
}

const testSnapshotID = "2026-08-30T12:00:00Z"

func ingestedEntry() *models.SnapshotRegistryEntry {
	return &models.SnapshotRegistryEntry{
		SnapshotID: testSnapshotID,
		Status:     models.StatusIngested,
	}
}

func TestProcessSnapshotUnregistered(t *testing.T) {
	store := &fakeStore{}
	err := testHandler(store).ProcessSnapshot(context.Background(), testSnapshotID)
	assert.Error(t, err)
	assert.Empty(t, store.statuses)
}

func TestProcessSnapshotSkipsClaimed(t *testing.T) {
	for _, status := range []string{models.StatusScoringInProgress, models.StatusScoringCompleted} {
		entry := ingestedEntry()
		entry.Status = status
		store := &fakeStore{entry: entry}

		err := testHandler(store).ProcessSnapshot(context.Background(), testSnapshotID)
		require.NoError(t, err)
		assert.Empty(t, store.statuses, "status %s must not be re-claimed", status)
		assert.Zero(t, store.execs)
	}
}

func TestProcessSnapshotHappyPath(t *testing.T) {
	store := &fakeStore{
		entry: ingestedEntry(),
		counts: map[string]uint64{
			models.TablePipelineUnits: 10,
			models.TableScoreHistory:  3,
		},
	}

	err := testHandler(store).ProcessSnapshot(context.Background(), testSnapshotID)
	require.NoError(t, err)

	assert.Equal(t, []string{models.StatusScoringInProgress, models.StatusScoringCompleted}, store.statuses)
	assert.Equal(t, 13, store.replaced)
	// One insert-select per scoring step.
	assert.Equal(t, 2, store.execs)
}

func TestProcessSnapshotRecordsFailure(t *testing.T) {
	store := &fakeStore{entry: ingestedEntry(), execErrAt: 1}

	err := testHandler(store).ProcessSnapshot(context.Background(), testSnapshotID)
	assert.Error(t, err)
	assert.Equal(t, []string{models.StatusScoringInProgress, models.StatusScoringFailed}, store.statuses)
}

func TestScoreSnapshotHistoryFailureKeepsUnitResults(t *testing.T) {
	store := &fakeStore{
		entry:     ingestedEntry(),
		execErrAt: 2,
		counts:    map[string]uint64{models.TablePipelineUnits: 7},
	}

	processor := &Processor{Store: store, Logger: zap.NewNop(), SettlingDelay: time.Millisecond}
	results, err := processor.ScoreSnapshot(context.Background(), testSnapshotID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "score history step")
	require.NotNil(t, results)
	assert.Equal(t, uint64(7), results.UnitRecords)
	assert.Zero(t, results.HistoryRecords)
}
