package models

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const TableOwners = "hs_owners"

var OwnerColumns = []ColumnDef{
	{Name: "owner_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "email", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "first_name", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "last_name", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "user_id", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "active", Type: "Bool"},
	{Name: "record_timestamp", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Owner is reference data shared across snapshots: owner_id is globally
// unique and rows are not snapshot-stamped. Re-ingesting owners produces a
// new version per owner_id, deduplicated by the ReplacingMergeTree engine.
type Owner struct {
	OwnerID         string    `ch:"owner_id"`
	Email           *string   `ch:"email"`
	FirstName       *string   `ch:"first_name"`
	LastName        *string   `ch:"last_name"`
	UserID          *string   `ch:"user_id"`
	Active          bool      `ch:"active"`
	RecordTimestamp time.Time `ch:"record_timestamp"`
}

var OwnerFieldMap = map[string]string{
	"owner_id":   "id",
	"email":      "email",
	"first_name": "firstName",
	"last_name":  "lastName",
	"user_id":    "userId",
	"active":     "active",
}

func InitOwners(ctx context.Context, db driver.Conn) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s
		) ENGINE = ReplacingMergeTree(record_timestamp)
		ORDER BY owner_id
	`, TableOwners, ColumnsToSchemaSQL(OwnerColumns))
	return db.Exec(ctx, query)
}
