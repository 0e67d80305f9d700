package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
	"github.com/nordlys/crmx/pkg/db/warehouse"
)

// fakeStore answers count queries from a per-test respond function and
// records every query the verifier issues.
type fakeStore struct {
	warehouse.Store

	queries []string
	args    [][]interface{}
	respond func(query string) (uint64, error)
}

func (f *fakeStore) DatabaseName() string { return "crmx_test" }

func (f *fakeStore) Select(_ context.Context, dest interface{}, query string, args ...interface{}) error {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)

	n, err := f.respond(query)
	if err != nil {
		return err
	}

	rows, ok := dest.(*[]struct {
		Count uint64 `ch:"cnt"`
	})
	if !ok {
		return fmt.Errorf("unexpected destination type %T", dest)
	}
	*rows = append(*rows, struct {
		Count uint64 `ch:"cnt"`
	}{Count: n})
	return nil
}

func testVerifier(respond func(query string) (uint64, error)) (*Verifier, *fakeStore) {
	store := &fakeStore{respond: respond}
	return &Verifier{Store: store, Logger: zap.NewNop()}, store
}

func allClean(string) (uint64, error) { return 0, nil }

func TestRunCleanDataset(t *testing.T) {
	v, store := testVerifier(allClean)

	report, err := v.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Issues)
	assert.Equal(t, "crmx_test", report.Dataset)

	// Every check class must have issued at least one query.
	var enum, format, unique bool
	for _, q := range store.queries {
		enum = enum || strings.Contains(q, "lowerUTF8(")
		format = format || strings.Contains(q, "match(")
		unique = unique || strings.Contains(q, "HAVING count() > 1")
	}
	assert.True(t, enum, "no enum normalization query issued")
	assert.True(t, format, "no format query issued")
	assert.True(t, unique, "no uniqueness query issued")
}

func TestCheckReferentialEscalatesAtThreshold(t *testing.T) {
	cases := []struct {
		orphans  uint64
		severity string
	}{
		{5, SeverityCritical}, // 5 of 100 hits the ratio
		{4, SeverityWarning},
	}

	for _, tc := range cases {
		v, _ := testVerifier(func(query string) (uint64, error) {
			if !strings.Contains(query, "hubspot_owner_id") {
				return 0, nil
			}
			if strings.Contains(query, "NOT IN") {
				return tc.orphans, nil
			}
			return 100, nil
		})

		report := &Report{}
		v.checkReferential(context.Background(), report)

		require.Len(t, report.Issues, 1)
		issue := report.Issues[0]
		assert.Equal(t, models.TableCompanies, issue.Table)
		assert.Equal(t, "hubspot_owner_id", issue.Column)
		assert.Equal(t, CheckReferential, issue.Check)
		assert.Equal(t, tc.orphans, issue.Count)
		assert.Equal(t, tc.severity, issue.Severity)
		assert.Contains(t, issue.Description, "100")
	}
}

func TestCheckRequiredFlagsMissingValues(t *testing.T) {
	v, _ := testVerifier(func(query string) (uint64, error) {
		if strings.Contains(query, "IS NULL OR") && strings.Contains(query, "company_name") {
			return 3, nil
		}
		return 0, nil
	})

	report := &Report{}
	v.checkRequired(context.Background(), report)

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, models.TableCompanies, issue.Table)
	assert.Equal(t, CheckRequired, issue.Check)
	assert.Equal(t, SeverityCritical, issue.Severity)
	assert.Equal(t, "3 rows have null/empty company_name", issue.Description)
}

func TestCheckUniqueFlagsDuplicates(t *testing.T) {
	v, _ := testVerifier(func(query string) (uint64, error) {
		if strings.Contains(query, "deal_id") {
			return 2, nil
		}
		return 0, nil
	})

	report := &Report{}
	v.checkUnique(context.Background(), report)

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, models.TableDeals, issue.Table)
	assert.Equal(t, "deal_id, snapshot_id", issue.Column)
	assert.Equal(t, CheckUnique, issue.Check)
	assert.Equal(t, SeverityCritical, issue.Severity)
	assert.Equal(t, uint64(2), issue.Count)
}

func TestCheckFormatsPassesPatternArgument(t *testing.T) {
	v, store := testVerifier(func(query string) (uint64, error) {
		if strings.Contains(query, "email") {
			return 4, nil
		}
		return 0, nil
	})

	report := &Report{}
	v.checkFormats(context.Background(), report)

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, models.TableOwners, issue.Table)
	assert.Equal(t, CheckFormat, issue.Check)
	assert.Equal(t, SeverityWarning, issue.Severity)
	assert.Contains(t, issue.Description, "email")

	// The pattern rides as a bound argument, never interpolated.
	for i, q := range store.queries {
		if strings.Contains(q, "email") {
			require.Len(t, store.args[i], 1)
			assert.Equal(t, models.EmailPattern, store.args[i][0])
		}
	}
}

func TestCheckEnumsFlagsUnnormalizedValues(t *testing.T) {
	v, store := testVerifier(func(query string) (uint64, error) {
		if strings.Contains(query, "lifecycle_stage") {
			return 7, nil
		}
		return 0, nil
	})

	report := &Report{}
	v.checkEnums(context.Background(), report)

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, models.TableCompanies, issue.Table)
	assert.Equal(t, "lifecycle_stage", issue.Column)
	assert.Equal(t, CheckEnum, issue.Check)
	assert.Equal(t, SeverityWarning, issue.Severity)
	assert.Equal(t, uint64(7), issue.Count)

	// One query per declared enum column, each comparing against lowerUTF8.
	var declared int
	for _, cols := range models.EnumColumns {
		declared += len(cols)
	}
	require.Len(t, store.queries, declared)
	for _, q := range store.queries {
		assert.Contains(t, q, "lowerUTF8(")
	}
}

func TestRunSurvivesQueryFailures(t *testing.T) {
	v, _ := testVerifier(func(string) (uint64, error) {
		return 0, errors.New("table does not exist")
	})

	report, err := v.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, report.Issues)
	for _, issue := range report.Issues {
		assert.Equal(t, CheckError, issue.Check)
		assert.Equal(t, SeverityWarning, issue.Severity)
	}
	// Failed checks degrade to warnings, never to a failed report.
	assert.True(t, report.Passed)
}
