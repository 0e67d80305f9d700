package models

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a warehouse table.
// This is the single source of truth for column definitions, used by:
// - Table creation (pkg/db/warehouse)
// - Row mapping in the ingestion adapter (pkg/ingest)
// - Integrity checks (pkg/verify)
type ColumnDef struct {
	// Name is the column name in the warehouse table
	Name string

	// Type is the ClickHouse data type (e.g., "String", "Nullable(Float64)", "DateTime64(6)")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)")
	// Leave empty for no codec
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "company_id String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// Validate checks if the column definition is valid.
func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL converts a list of ColumnDef to a CREATE TABLE schema string.
// Example output: "company_id String CODEC(ZSTD(1)),\n\t\t\tcompany_name Nullable(String)"
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	var parts []string
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList extracts just the column names from a list of ColumnDef.
// Useful for INSERT statements.
func ColumnsToNameList(columns []ColumnDef) []string {
	var names []string
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}

// ValidateColumns validates all columns in a list.
// Returns the first validation error encountered.
func ValidateColumns(columns []ColumnDef) error {
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasColumn reports whether the list declares a column with the given name.
func HasColumn(columns []ColumnDef, name string) bool {
	for _, col := range columns {
		if col.Name == name {
			return true
		}
	}
	return false
}
