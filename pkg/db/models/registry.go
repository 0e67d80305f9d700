package models

import (
	"fmt"
)

// Entity names used by the ingestion adapter and loader. They key the
// Registry and the per-run row counts reported in snapshot events.
const (
	EntityCompanies = "companies"
	EntityDeals     = "deals"
	EntityOwners    = "owners"
)

// Table binds an entity to its warehouse table and column contract.
type Table struct {
	Name    string
	Columns []ColumnDef
}

// Registry maps every declared table name to its column list. Table and
// column names are the wire contract between the adapter, the loader, and
// scoring; they must match exactly, case-sensitive.
var Registry = map[string]Table{
	TableCompanies:          {Name: TableCompanies, Columns: CompanyColumns},
	TableDeals:              {Name: TableDeals, Columns: DealColumns},
	TableOwners:             {Name: TableOwners, Columns: OwnerColumns},
	TableStageMapping:       {Name: TableStageMapping, Columns: StageMappingColumns},
	TableDealStageReference: {Name: TableDealStageReference, Columns: DealStageReferenceColumns},
	TablePipelineUnits:      {Name: TablePipelineUnits, Columns: PipelineUnitColumns},
	TableScoreHistory:       {Name: TableScoreHistory, Columns: ScoreHistoryColumns},
	TableSnapshotRegistry:   {Name: TableSnapshotRegistry, Columns: SnapshotRegistryColumns},
}

// EntityTables maps ingestion entity names to their destination tables.
var EntityTables = map[string]string{
	EntityCompanies: TableCompanies,
	EntityDeals:     TableDeals,
	EntityOwners:    TableOwners,
}

// EntityFieldMaps maps ingestion entity names to their CRM field maps.
var EntityFieldMaps = map[string]map[string]string{
	EntityCompanies: CompanyFieldMap,
	EntityDeals:     DealFieldMap,
	EntityOwners:    OwnerFieldMap,
}

// ForeignKey declares one child→parent column relationship. The integrity
// verifier counts child rows whose non-null value is absent from the
// parent's value set.
type ForeignKey struct {
	ChildTable   string
	ChildColumn  string
	ParentTable  string
	ParentColumn string
	Description  string
}

// ForeignKeys is the full set of checked relationships. Soft constraints:
// verified after the fact, never enforced on write.
var ForeignKeys = []ForeignKey{
	{TableCompanies, "hubspot_owner_id", TableOwners, "owner_id", "Company owner relationship"},
	{TableDeals, "owner_id", TableOwners, "owner_id", "Deal owner relationship"},
	{TableDeals, "associated_company_id", TableCompanies, "company_id", "Deal company relationship"},
	{TablePipelineUnits, "owner_id", TableOwners, "owner_id", "Pipeline owner relationship"},
	{TablePipelineUnits, "company_id", TableCompanies, "company_id", "Pipeline company relationship"},
	{TablePipelineUnits, "deal_id", TableDeals, "deal_id", "Pipeline deal relationship"},
}

// RequiredFields lists columns that must be non-null and non-empty.
var RequiredFields = map[string][]string{
	TableCompanies:        {"company_id", "company_name"},
	TableDeals:            {"deal_id", "deal_name"},
	TableOwners:           {"owner_id", "email"},
	TableSnapshotRegistry: {"snapshot_id", "triggered_by", "status"},
}

// UniqueConstraints lists column tuples whose values must not repeat.
var UniqueConstraints = map[string][][]string{
	TableCompanies:        {{"company_id", "snapshot_id"}},
	TableDeals:            {{"deal_id", "snapshot_id"}},
	TableOwners:           {{"owner_id"}},
	TableSnapshotRegistry: {{"snapshot_id", "triggered_by", "updated_at"}},
}

// EnumColumns lists columns whose values the ingestion adapter lowercases.
// The verifier flags values that escaped normalization: the scoring joins
// match these strings literally, so a stray "Lead" never scores.
var EnumColumns = map[string][]string{
	TableCompanies: {"lifecycle_stage", "lead_status", "company_type"},
	TableDeals:     {"deal_stage", "deal_type"},
}

// Format validation patterns for regex-checked columns.
const (
	EmailPattern      = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	SnapshotIDPattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`
)

// FormatRule binds a regex pattern to a table column.
type FormatRule struct {
	Table   string
	Column  string
	Name    string // "email", "snapshot_id"
	Pattern string
}

var FormatRules = []FormatRule{
	{TableOwners, "email", "email", EmailPattern},
	{TableCompanies, "snapshot_id", "snapshot_id", SnapshotIDPattern},
	{TableDeals, "snapshot_id", "snapshot_id", SnapshotIDPattern},
	{TablePipelineUnits, "snapshot_id", "snapshot_id", SnapshotIDPattern},
	{TableSnapshotRegistry, "snapshot_id", "snapshot_id", SnapshotIDPattern},
}

// ValidateRegistry cross-checks every declared constraint against the
// Registry so that a typo in a table or column name fails at startup
// instead of surfacing as a broken query at verification time.
func ValidateRegistry() error {
	for name, table := range Registry {
		if name != table.Name {
			return fmt.Errorf("registry key %q does not match table name %q", name, table.Name)
		}
		if err := ValidateColumns(table.Columns); err != nil {
			return fmt.Errorf("table %s: %w", name, err)
		}
	}

	for _, fk := range ForeignKeys {
		child, ok := Registry[fk.ChildTable]
		if !ok {
			return fmt.Errorf("foreign key %s.%s: child table not in registry", fk.ChildTable, fk.ChildColumn)
		}
		if !HasColumn(child.Columns, fk.ChildColumn) {
			return fmt.Errorf("foreign key %s.%s: child column not declared", fk.ChildTable, fk.ChildColumn)
		}
		parent, ok := Registry[fk.ParentTable]
		if !ok {
			return fmt.Errorf("foreign key %s.%s -> %s: parent table not in registry", fk.ChildTable, fk.ChildColumn, fk.ParentTable)
		}
		if !HasColumn(parent.Columns, fk.ParentColumn) {
			return fmt.Errorf("foreign key %s.%s -> %s.%s: parent column not declared", fk.ChildTable, fk.ChildColumn, fk.ParentTable, fk.ParentColumn)
		}
	}

	for tableName, cols := range RequiredFields {
		table, ok := Registry[tableName]
		if !ok {
			return fmt.Errorf("required fields: table %s not in registry", tableName)
		}
		for _, col := range cols {
			if !HasColumn(table.Columns, col) {
				return fmt.Errorf("required field %s.%s not declared", tableName, col)
			}
		}
	}

	for tableName, tuples := range UniqueConstraints {
		table, ok := Registry[tableName]
		if !ok {
			return fmt.Errorf("unique constraints: table %s not in registry", tableName)
		}
		for _, tuple := range tuples {
			for _, col := range tuple {
				if !HasColumn(table.Columns, col) {
					return fmt.Errorf("unique constraint column %s.%s not declared", tableName, col)
				}
			}
		}
	}

	for tableName, cols := range EnumColumns {
		table, ok := Registry[tableName]
		if !ok {
			return fmt.Errorf("enum columns: table %s not in registry", tableName)
		}
		for _, col := range cols {
			if !HasColumn(table.Columns, col) {
				return fmt.Errorf("enum column %s.%s not declared", tableName, col)
			}
		}
	}

	for _, rule := range FormatRules {
		table, ok := Registry[rule.Table]
		if !ok {
			return fmt.Errorf("format rule %s: table %s not in registry", rule.Name, rule.Table)
		}
		if !HasColumn(table.Columns, rule.Column) {
			return fmt.Errorf("format rule %s: column %s.%s not declared", rule.Name, rule.Table, rule.Column)
		}
	}

	for entity, tableName := range EntityTables {
		table, ok := Registry[tableName]
		if !ok {
			return fmt.Errorf("entity %s: table %s not in registry", entity, tableName)
		}
		fieldMap, ok := EntityFieldMaps[entity]
		if !ok {
			return fmt.Errorf("entity %s: no field map declared", entity)
		}
		if err := validateFieldMap(table, fieldMap); err != nil {
			return fmt.Errorf("entity %s: %w", entity, err)
		}
	}

	return nil
}

// validateFieldMap ensures the field map and column list stay in sync:
// every non-system column must have a source mapping, and every mapped
// column must be declared.
func validateFieldMap(table Table, fieldMap map[string]string) error {
	exempt := map[string]bool{"snapshot_id": true, "record_timestamp": true}

	for _, col := range table.Columns {
		if exempt[col.Name] {
			continue
		}
		if _, ok := fieldMap[col.Name]; !ok {
			return fmt.Errorf("column %s declared in %s but missing from field map", col.Name, table.Name)
		}
	}
	for col := range fieldMap {
		if !HasColumn(table.Columns, col) {
			return fmt.Errorf("field map key %s not declared in %s", col, table.Name)
		}
	}
	return nil
}
