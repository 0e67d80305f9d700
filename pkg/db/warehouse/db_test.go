package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlys/crmx/pkg/db/models"
)

func TestColumnDriftCleanTable(t *testing.T) {
	live := map[string]string{}
	for _, col := range models.CompanyColumns {
		live[col.Name] = col.Type
	}

	assert.Empty(t, columnDrift(models.CompanyColumns, live))
}

func TestColumnDriftDetectsMismatches(t *testing.T) {
	declared := []models.ColumnDef{
		{Name: "company_id", Type: "String"},
		{Name: "company_name", Type: "Nullable(String)"},
		{Name: "snapshot_id", Type: "String"},
	}
	live := map[string]string{
		"company_id":  "Int64",  // type changed
		"snapshot_id": "String", // matches
		"legacy_flag": "UInt8",  // not declared
	}

	drifts := columnDrift(declared, live)
	require.Len(t, drifts, 3)

	joined := ""
	for _, d := range drifts {
		joined += d + "\n"
	}
	assert.Contains(t, joined, "column company_id is Int64, declared String")
	assert.Contains(t, joined, "declared column company_name is missing")
	assert.Contains(t, joined, "column legacy_flag is not declared")
}
