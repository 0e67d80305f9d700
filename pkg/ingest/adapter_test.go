package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/models"
)

func props(kv map[string]string) map[string]*string {
	out := make(map[string]*string, len(kv))
	for k, v := range kv {
		v := v
		out[k] = &v
	}
	return out
}

func columnValue(t *testing.T, table string, row []any, col string) any {
	t.Helper()
	for i, c := range models.Registry[table].Columns {
		if c.Name == col {
			return row[i]
		}
	}
	t.Fatalf("column %s not found in %s", col, table)
	return nil
}

func TestPropertiesExcludePseudoFields(t *testing.T) {
	for _, entity := range []string{models.EntityCompanies, models.EntityDeals} {
		for _, prop := range Properties(entity) {
			assert.NotEqual(t, "id", prop)
			assert.NotEqual(t, "associations", prop)
		}
	}
	assert.Contains(t, Properties(models.EntityCompanies), "hs_lead_status")
}

func TestMapRecordsRowWidthMatchesSchema(t *testing.T) {
	ts := time.Now().UTC()
	records := []crm.Record{{ID: "1"}, {ID: "2", Properties: props(map[string]string{"name": "Acme"})}}

	for entity, table := range models.EntityTables {
		if entity == models.EntityOwners {
			continue // owners come from MapOwners
		}
		rows, err := MapRecords(entity, records, "2026-08-30T12:00:00Z", ts)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Len(t, row, len(models.Registry[table].Columns), "entity %s", entity)
		}
	}
}

func TestMapRecordsNormalizesAndStamps(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	records := []crm.Record{{
		ID: "101",
		Properties: props(map[string]string{
			"name":             "  Acme AS ",
			"lifecyclestage":   "Lead",
			"hs_lead_status":   "ATTEMPTED_TO_CONTACT",
			"hubspot_owner_id": "35975295",
		}),
	}}

	rows, err := MapRecords(models.EntityCompanies, records, "2026-08-30T12:00:00Z", ts)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	get := func(col string) any { return columnValue(t, models.TableCompanies, rows[0], col) }

	assert.Equal(t, "101", get("company_id"))
	assert.Equal(t, "Acme AS", *get("company_name").(*string))
	assert.Equal(t, "lead", *get("lifecycle_stage").(*string))
	assert.Equal(t, "attempted_to_contact", *get("lead_status").(*string))
	assert.Equal(t, "2026-08-30T12:00:00Z", get("snapshot_id"))
	assert.Equal(t, ts, get("record_timestamp"))

	// Properties the source never sent map to null.
	assert.Nil(t, get("development_category"))
}

func TestMapRecordsDealAssociationsAndAmount(t *testing.T) {
	records := []crm.Record{{
		ID: "500",
		Properties: props(map[string]string{
			"dealname":  "Big deal",
			"dealstage": "Appointmentscheduled",
			"amount":    "120000.5",
		}),
		Associations: map[string]crm.Associations{
			"companies": {Results: []crm.AssociationRef{{ID: "101"}, {ID: "999"}}},
		},
	}}

	rows, err := MapRecords(models.EntityDeals, records, "2026-08-30T12:00:00Z", time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	get := func(col string) any { return columnValue(t, models.TableDeals, rows[0], col) }

	assert.Equal(t, "appointmentscheduled", *get("deal_stage").(*string))
	assert.Equal(t, 120000.5, *get("amount").(*float64))
	// First association wins.
	assert.Equal(t, "101", *get("associated_company_id").(*string))
}

func TestMapRecordsBadAmount(t *testing.T) {
	records := []crm.Record{{
		ID:         "500",
		Properties: props(map[string]string{"amount": "a lot"}),
	}}

	_, err := MapRecords(models.EntityDeals, records, "2026-08-30T12:00:00Z", time.Now())
	assert.Error(t, err)
}

func TestMapRecordsUnknownEntity(t *testing.T) {
	_, err := MapRecords("tickets", nil, "2026-08-30T12:00:00Z", time.Now())
	assert.Error(t, err)
}

func TestMapOwners(t *testing.T) {
	ts := time.Now().UTC()
	owners := []crm.Owner{
		{ID: "35975295", Email: " Uma@Example.COM ", FirstName: "Uma", LastName: "Baeko", UserID: 9001},
		{ID: "612145716", Archived: true},
	}

	rows := MapOwners(owners, ts)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, len(models.Registry[models.TableOwners].Columns))
	}

	get := func(row []any, col string) any { return columnValue(t, models.TableOwners, row, col) }

	assert.Equal(t, "uma@example.com", *get(rows[0], "email").(*string))
	assert.Equal(t, "9001", *get(rows[0], "user_id").(*string))
	assert.Equal(t, true, get(rows[0], "active"))

	assert.Nil(t, get(rows[1], "email"))
	assert.Nil(t, get(rows[1], "user_id"))
	assert.Equal(t, false, get(rows[1], "active"))
}

func TestMapPipelines(t *testing.T) {
	pipelines := []crm.Pipeline{{
		ID:    "default",
		Label: "Sales Pipeline",
		Stages: []crm.PipelineStage{
			{ID: "Appointmentscheduled", Label: "Appointment scheduled", DisplayOrder: 0},
			{ID: "closedwon", Label: "Closed won", DisplayOrder: 6},
		},
	}}

	rows := MapPipelines(pipelines)
	require.Len(t, rows, 2)
	assert.Equal(t, "default", rows[0].PipelineID)
	assert.Equal(t, "appointmentscheduled", rows[0].StageID)
	assert.Equal(t, "Sales Pipeline", *rows[0].PipelineLabel)
	assert.Equal(t, int32(6), rows[1].DisplayOrder)
}
