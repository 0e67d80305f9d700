package xlsximport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
)

func testMapper(t *testing.T) *Mapper {
	t.Helper()
	owners, err := LoadOwnerLookup()
	require.NoError(t, err)
	return &Mapper{Owners: owners, Logger: zap.NewNop()}
}

func TestMapCompaniesAlignsToSchema(t *testing.T) {
	sheet := &Sheet{
		Name:   "company-2025-03-21",
		Header: []string{"Record ID", "Company name", "Company owner", "Type", "Lifecycle Stage", "Lead Status"},
		Rows: [][]string{
			{"101", "Acme AS", "Sofie Meyer", "PROSPECT", "Sales Qualified Lead", "Attempted to contact"},
			{"102", "", "", "", "Lead", ""},
		},
	}

	ts := time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	rows, err := testMapper(t).MapCompanies(sheet, "2025-03-21T00:00:00Z", ts)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	columns := models.Registry[models.TableCompanies].Columns
	for _, row := range rows {
		assert.Len(t, row, len(columns))
	}

	byName := func(row []any, col string) any {
		for i, c := range columns {
			if c.Name == col {
				return row[i]
			}
		}
		t.Fatalf("column %s not found", col)
		return nil
	}

	assert.Equal(t, "101", byName(rows[0], "company_id"))
	assert.Equal(t, "salesqualifiedlead", *byName(rows[0], "lifecycle_stage").(*string))
	assert.Equal(t, "attempted_to_contact", *byName(rows[0], "lead_status").(*string))
	assert.Equal(t, "prospect", *byName(rows[0], "company_type").(*string))
	assert.Equal(t, "612145716", *byName(rows[0], "hubspot_owner_id").(*string))
	assert.Equal(t, "2025-03-21T00:00:00Z", byName(rows[0], "snapshot_id"))

	// Empty cells become null, not empty strings.
	assert.Nil(t, byName(rows[1], "company_name"))
	assert.Nil(t, byName(rows[1], "lead_status"))
	assert.Equal(t, "lead", *byName(rows[1], "lifecycle_stage").(*string))
}

func TestMapCompaniesSkipsRowsWithoutID(t *testing.T) {
	sheet := &Sheet{
		Name:   "company-x",
		Header: []string{"Record ID", "Company name"},
		Rows: [][]string{
			{"", "No ID"},
			{"7", "Kept"},
		},
	}

	rows, err := testMapper(t).MapCompanies(sheet, "2025-03-21T00:00:00Z", time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMapCompaniesRequiresRecordIDHeader(t *testing.T) {
	sheet := &Sheet{
		Name:   "mystery",
		Header: []string{"Something", "Else"},
		Rows:   [][]string{{"a", "b"}},
	}

	_, err := testMapper(t).MapCompanies(sheet, "2025-03-21T00:00:00Z", time.Now())
	assert.Error(t, err)
}

func TestMapDealsHeaderVariations(t *testing.T) {
	sheet := &Sheet{
		Name:   "deals-2025-03-21-1",
		Header: []string{"Record ID", "Dealname", "Dealstage", "Dealtype", "Amount", "Deal owner", "Company ID"},
		Rows: [][]string{
			{"500", "Big deal", "Appointmentscheduled", "newbusiness", "kr 120,000", "Gjermund", "101.0"},
		},
	}

	rows, err := testMapper(t).MapDeals(sheet, "2025-03-21T00:00:00Z", time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	columns := models.Registry[models.TableDeals].Columns
	assert.Len(t, rows[0], len(columns))

	byName := func(col string) any {
		for i, c := range columns {
			if c.Name == col {
				return rows[0][i]
			}
		}
		t.Fatalf("column %s not found", col)
		return nil
	}

	assert.Equal(t, "500", byName("deal_id"))
	assert.Equal(t, "appointmentscheduled", *byName("deal_stage").(*string))
	assert.Equal(t, 120000.0, *byName("amount").(*float64))
	assert.Equal(t, "677066168", *byName("owner_id").(*string))
	assert.Equal(t, "101", *byName("associated_company_id").(*string))
}

func TestCleanID(t *testing.T) {
	assert.Equal(t, "35975295", cleanID("35975295.0"))
	assert.Equal(t, "1596892909", cleanID("1.596892909E9"))
	assert.Equal(t, "abc-123", cleanID("abc-123"))
	assert.Equal(t, "12.5", cleanID("12.5"))
	assert.Equal(t, "", cleanID(""))
}

func TestParseAmount(t *testing.T) {
	amt := parseAmount("$1,250.50")
	require.NotNil(t, amt)
	assert.Equal(t, 1250.50, *amt)

	assert.Nil(t, parseAmount(""))
	assert.Nil(t, parseAmount("n/a"))
}
