package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableDeals = "hs_deals"

var DealColumns = []ColumnDef{
	{Name: "deal_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "deal_name", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "deal_stage", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "deal_type", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "amount", Type: "Nullable(Float64)"},
	{Name: "owner_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "associated_company_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "record_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "snapshot_id", Type: "String", Codec: "ZSTD(1)"},
}

// Deal is one CRM deal row under a given snapshot. associated_company_id is a
// soft foreign key to hs_companies.company_id: checked by the integrity
// verifier, never enforced on write.
type Deal struct {
	DealID              string    `ch:"deal_id"`
	DealName            *string   `ch:"deal_name"`
	DealStage           *string   `ch:"deal_stage"`
	DealType            *string   `ch:"deal_type"`
	Amount              *float64  `ch:"amount"`
	OwnerID             *string   `ch:"owner_id"`
	AssociatedCompanyID *string   `ch:"associated_company_id"`
	RecordTimestamp     time.Time `ch:"record_timestamp"`
	SnapshotID          string    `ch:"snapshot_id"`
}

// DealFieldMap translates CRM deal properties onto warehouse columns.
// associated_company_id comes from the record's association list, not a
// property, so the adapter resolves it specially.
var DealFieldMap = map[string]string{
	"deal_id":               "id",
	"deal_name":             "dealname",
	"deal_stage":            "dealstage",
	"deal_type":             "dealtype",
	"amount":                "amount",
	"owner_id":              "hubspot_owner_id",
	"associated_company_id": "associations",
}

func InitDeals(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = MergeTree
		ORDER BY (snapshot_id, deal_id)
	`, TableDeals, ColumnsToSchemaSQL(DealColumns))
	return db.Exec(ctx, query)
}
