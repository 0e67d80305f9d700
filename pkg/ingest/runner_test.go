package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
	"github.com/nordlys/crmx/pkg/events"
)

type runnerStore struct {
	warehouse.Store

	created   []string
	statuses  []string
	notes     []string
	inserted  map[string]int
	failTable string
	refRows   int
}

func (s *runnerStore) CreateSnapshot(_ context.Context, snapshotID, _ string) error {
	s.created = append(s.created, snapshotID)
	return nil
}

func (s *runnerStore) InsertRows(_ context.Context, table string, rows [][]any) (int, error) {
	if table == s.failTable {
		return 0, errors.New("insert failed")
	}
	if s.inserted == nil {
		s.inserted = map[string]int{}
	}
	s.inserted[table] = len(rows)
	return len(rows), nil
}

func (s *runnerStore) UpdateSnapshot(_ context.Context, _, status, notes string) error {
	s.statuses = append(s.statuses, status)
	s.notes = append(s.notes, notes)
	return nil
}

func (s *runnerStore) ReplaceDealStageReference(_ context.Context, rows []*models.DealStageReference) error {
	s.refRows = len(rows)
	return nil
}

type fakeCRM struct {
	companies    crm.FetchResult
	companiesErr error
	deals        crm.FetchResult
	owners       []crm.Owner
	ownersErr    error
	pipelines    []crm.Pipeline
	pipelinesErr error

	companyFilters []crm.Filter
}

func (f *fakeCRM) FetchObjects(_ context.Context, objectType string, filters []crm.Filter, _ int, _ []string) (crm.FetchResult, error) {
	switch objectType {
	case crm.ObjectCompanies:
		f.companyFilters = filters
		return f.companies, f.companiesErr
	case crm.ObjectDeals:
		return f.deals, nil
	}
	return crm.FetchResult{}, fmt.Errorf("unexpected object type %q", objectType)
}

func (f *fakeCRM) FetchOwners(_ context.Context) ([]crm.Owner, error) {
	return f.owners, f.ownersErr
}

func (f *fakeCRM) FetchDealPipelines(_ context.Context) ([]crm.Pipeline, error) {
	return f.pipelines, f.pipelinesErr
}

type fakePublisher struct {
	completed []events.SnapshotCompleted
	failed    []events.SnapshotFailed
}

func (p *fakePublisher) PublishSnapshotCompleted(_ context.Context, payload events.SnapshotCompleted) error {
	p.completed = append(p.completed, payload)
	return nil
}

func (p *fakePublisher) PublishSnapshotFailed(_ context.Context, payload events.SnapshotFailed) error {
	p.failed = append(p.failed, payload)
	return nil
}

func record(id string, kv map[string]string) crm.Record {
	return crm.Record{ID: id, Properties: props(kv)}
}

func testCRM() *fakeCRM {
	return &fakeCRM{
		companies: crm.FetchResult{
			Records: []crm.Record{
				record("100", map[string]string{"name": "Acme", "lifecyclestage": "lead"}),
				record("101", map[string]string{"name": "Globex", "lifecyclestage": "opportunity"}),
			},
			CallCount: 1,
		},
		deals: crm.FetchResult{
			Records: []crm.Record{
				record("500", map[string]string{"dealname": "Acme expansion", "dealstage": "qualifiedtobuy"}),
			},
			CallCount: 1,
		},
		owners: []crm.Owner{
			{ID: "9", Email: "sofie@example.com", FirstName: "Sofie", LastName: "Meyer", UserID: 612145716},
		},
		pipelines: []crm.Pipeline{
			{ID: "default", Label: "Sales", Stages: []crm.PipelineStage{
				{ID: "qualifiedtobuy", Label: "Qualified to buy", DisplayOrder: 1},
				{ID: "contractsent", Label: "Contract sent", DisplayOrder: 2},
			}},
		},
	}
}

func testRunner(store *runnerStore, source *fakeCRM, pub *fakePublisher) *Runner {
	r := &Runner{Store: store, CRM: source, Logger: zap.NewNop()}
	if pub != nil {
		r.Publisher = pub
	}
	return r
}

func TestRunHappyPath(t *testing.T) {
	store := &runnerStore{}
	source := testCRM()
	pub := &fakePublisher{}

	report, err := testRunner(store, source, pub).Run(context.Background(), Options{TriggeredBy: "http"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(models.SnapshotIDPattern), report.SnapshotID)
	assert.Equal(t, []string{report.SnapshotID}, store.created)
	assert.Equal(t, []string{models.StatusIngested}, store.statuses)
	assert.Equal(t, "companies=2 deals=1 owners=1", store.notes[0])

	assert.Equal(t, uint64(2), report.Counts[models.TableCompanies])
	assert.Equal(t, uint64(1), report.Counts[models.TableDeals])
	assert.Equal(t, uint64(1), report.Counts[models.TableOwners])
	assert.Equal(t, uint64(2), report.ReferenceCounts[models.TableDealStageReference])
	assert.Equal(t, 1, report.APICalls[models.EntityCompanies])
	assert.Equal(t, 2, store.refRows)

	require.Len(t, pub.completed, 1)
	assert.Equal(t, report.SnapshotID, pub.completed[0].SnapshotID)
	assert.Equal(t, "http", pub.completed[0].Metadata.TriggeredBy)
	assert.Equal(t, uint64(4), pub.completed[0].Metadata.TotalDataRecords)
	assert.Equal(t, uint64(2), pub.completed[0].Metadata.TotalReferenceRecords)
	assert.Empty(t, pub.failed)
}

func TestRunPassesFiltersAndSnapshotID(t *testing.T) {
	store := &runnerStore{}
	source := testCRM()
	filters := []crm.Filter{{PropertyName: "lifecyclestage", Operator: "EQ", Value: "lead"}}

	report, err := testRunner(store, source, nil).Run(context.Background(), Options{
		SnapshotID: "2026-08-30T06:00:00Z",
		Filters:    filters,
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-08-30T06:00:00Z", report.SnapshotID)
	assert.Equal(t, filters, source.companyFilters)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	store := &runnerStore{}
	pub := &fakePublisher{}

	report, err := testRunner(store, testCRM(), pub).Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	require.Len(t, report.Previews, 3)
	assert.Equal(t, models.TableCompanies, report.Previews[0].Table)
	assert.Equal(t, 2, report.Previews[0].RowCount)

	assert.Empty(t, store.created)
	assert.Empty(t, store.inserted)
	assert.Empty(t, store.statuses)
	assert.Empty(t, pub.completed)
}

func TestRunLoadFailureMarksSnapshotFailed(t *testing.T) {
	store := &runnerStore{failTable: models.TableDeals}
	pub := &fakePublisher{}

	_, err := testRunner(store, testCRM(), pub).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.TableDeals)

	assert.Equal(t, []string{models.StatusIngestFailed}, store.statuses)
	require.Len(t, pub.failed, 1)
	assert.Contains(t, pub.failed[0].Error, "insert failed")
	assert.Empty(t, pub.completed)
}

func TestRunFetchFailureAborts(t *testing.T) {
	store := &runnerStore{}
	source := testCRM()
	source.companiesErr = errors.New("connection refused")

	_, err := testRunner(store, source, nil).Run(context.Background(), Options{})
	require.Error(t, err)
	// The snapshot was registered before the fetch; the run bails without
	// a status transition.
	assert.Len(t, store.created, 1)
	assert.Empty(t, store.statuses)
}

func TestRunOwnerFetchFailureContinues(t *testing.T) {
	store := &runnerStore{}
	source := testCRM()
	source.ownersErr = errors.New("owners endpoint down")

	report, err := testRunner(store, source, nil).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), report.Counts[models.TableOwners])
	assert.Equal(t, []string{models.StatusIngested}, store.statuses)
}

func TestRunPipelineRefreshFailureKeepsRun(t *testing.T) {
	store := &runnerStore{}
	source := testCRM()
	source.pipelinesErr = errors.New("pipelines endpoint down")

	report, err := testRunner(store, source, nil).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Empty(t, report.ReferenceCounts)
	assert.Zero(t, store.refRows)
	assert.Equal(t, []string{models.StatusIngested}, store.statuses)
}
