package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlys/crmx/pkg/db/models"
)

func strPtr(s string) *string { return &s }

func companyRow(id string, name *string) []any {
	columns := models.Registry[models.TableCompanies].Columns
	row := make([]any, len(columns))
	for i, col := range columns {
		switch col.Name {
		case "company_id":
			row[i] = id
		case "company_name":
			row[i] = name
		case "snapshot_id":
			row[i] = "2026-08-30T12:00:00Z"
		case "record_timestamp":
			row[i] = time.Now().UTC()
		}
	}
	return row
}

func TestPreviewRows(t *testing.T) {
	rows := [][]any{
		companyRow("1", strPtr("Acme AS")),
		companyRow("2", nil),
		companyRow("3", strPtr("Borealis")),
		companyRow("4", nil),
	}

	preview, err := PreviewRows(models.TableCompanies, rows)
	require.NoError(t, err)

	assert.Equal(t, models.TableCompanies, preview.Table)
	assert.Equal(t, 4, preview.RowCount)
	assert.Equal(t, "1", preview.Sample["company_id"])

	// Required columns drive the stats: company_id fully set, name half.
	assert.Equal(t, 100.0, preview.NonNullPct["company_id"])
	assert.Equal(t, 50.0, preview.NonNullPct["company_name"])
}

func TestPreviewRowsEmpty(t *testing.T) {
	preview, err := PreviewRows(models.TableDeals, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, preview.RowCount)
	assert.Nil(t, preview.Sample)
	assert.Equal(t, 0.0, preview.NonNullPct["deal_id"])
}

func TestPreviewRowsUnknownTable(t *testing.T) {
	_, err := PreviewRows("hs_unknown", nil)
	assert.Error(t, err)
}
