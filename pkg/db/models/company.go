package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableCompanies = "hs_companies"

// CompanyColumns is the warehouse contract for hs_companies. Column order is
// load-bearing: the ingestion adapter emits row values in exactly this order.
var CompanyColumns = []ColumnDef{
	{Name: "company_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "company_name", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "lifecycle_stage", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "lead_status", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "hubspot_owner_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "company_type", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "development_category", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "hiring_developers", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "inhouse_developers", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "proff_likviditetsgrad", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "proff_link", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "proff_lonnsomhet", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "proff_soliditet", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "snapshot_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "record_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Company is one CRM company row under a given snapshot.
// (company_id, snapshot_id) is unique within the table; uniqueness is a soft
// invariant verified after the fact, not enforced by the engine.
type Company struct {
	CompanyID            string    `ch:"company_id"`
	CompanyName          *string   `ch:"company_name"`
	LifecycleStage       *string   `ch:"lifecycle_stage"`
	LeadStatus           *string   `ch:"lead_status"`
	HubspotOwnerID       *string   `ch:"hubspot_owner_id"`
	CompanyType          *string   `ch:"company_type"`
	DevelopmentCategory  *string   `ch:"development_category"`
	HiringDevelopers     *string   `ch:"hiring_developers"`
	InhouseDevelopers    *string   `ch:"inhouse_developers"`
	ProffLikviditetsgrad *string   `ch:"proff_likviditetsgrad"`
	ProffLink            *string   `ch:"proff_link"`
	ProffLonnsomhet      *string   `ch:"proff_lonnsomhet"`
	ProffSoliditet       *string   `ch:"proff_soliditet"`
	SnapshotID           string    `ch:"snapshot_id"`
	RecordTimestamp      time.Time `ch:"record_timestamp"`
}

// CompanyFieldMap translates CRM property names onto warehouse columns.
// Keys are warehouse column names, values the CRM property API names.
// snapshot_id/record_timestamp are stamped by the adapter, not fetched.
var CompanyFieldMap = map[string]string{
	"company_id":            "id",
	"company_name":          "name",
	"lifecycle_stage":       "lifecyclestage",
	"lead_status":           "hs_lead_status",
	"hubspot_owner_id":      "hubspot_owner_id",
	"company_type":          "type",
	"development_category":  "development_category",
	"hiring_developers":     "hiring_developers",
	"inhouse_developers":    "inhouse_developers",
	"proff_likviditetsgrad": "proff_likviditetsgrad",
	"proff_link":            "proff_link",
	"proff_lonnsomhet":      "proff_lonnsomhet",
	"proff_soliditet":       "proff_soliditet",
}

// InitCompanies creates the companies table if it does not exist.
// Rows are append-only; every snapshot contributes a fresh partition of rows
// keyed by snapshot_id.
func InitCompanies(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY (snapshot_id, company_id)
	`, TableCompanies, ColumnsToSchemaSQL(CompanyColumns))
	return db.Exec(ctx, query)
}
