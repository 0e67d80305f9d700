package models

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegistry(t *testing.T) {
	assert.NoError(t, ValidateRegistry())
}

func TestRegistryCatchesForeignKeyTypo(t *testing.T) {
	original := ForeignKeys
	defer func() { ForeignKeys = original }()

	ForeignKeys = append([]ForeignKey{}, original...)
	ForeignKeys = append(ForeignKeys, ForeignKey{
		ChildTable:   TableDeals,
		ChildColumn:  "onwer_id",
		ParentTable:  TableOwners,
		ParentColumn: "owner_id",
	})
	assert.Error(t, ValidateRegistry())
}

func TestRegistryCatchesFieldMapDrift(t *testing.T) {
	original := CompanyFieldMap
	defer func() { EntityFieldMaps[EntityCompanies] = original }()

	// A field map missing a declared column must fail validation.
	trimmed := map[string]string{}
	for k, v := range original {
		trimmed[k] = v
	}
	delete(trimmed, "lead_status")
	EntityFieldMaps[EntityCompanies] = trimmed
	assert.Error(t, ValidateRegistry())

	// So must a mapping for a column that does not exist.
	extra := map[string]string{}
	for k, v := range original {
		extra[k] = v
	}
	extra["revenue"] = "annualrevenue"
	EntityFieldMaps[EntityCompanies] = extra
	assert.Error(t, ValidateRegistry())
}

func TestRegistryCatchesEnumColumnTypo(t *testing.T) {
	original := EnumColumns[TableCompanies]
	defer func() { EnumColumns[TableCompanies] = original }()

	EnumColumns[TableCompanies] = append(append([]string{}, original...), "lifecyclestage")
	assert.Error(t, ValidateRegistry())
}

func TestEnumColumnsCoverScoringInputs(t *testing.T) {
	// The scoring stage derives the combined stage from these columns; each
	// must be declared so the verifier guards their normalization.
	assert.Contains(t, EnumColumns[TableCompanies], "lifecycle_stage")
	assert.Contains(t, EnumColumns[TableCompanies], "lead_status")
	assert.Contains(t, EnumColumns[TableDeals], "deal_stage")
}

func TestSnapshotIDPattern(t *testing.T) {
	re := regexp.MustCompile(SnapshotIDPattern)

	assert.True(t, re.MatchString("2026-08-30T12:00:00Z"))
	assert.False(t, re.MatchString("2026-08-30"))
	assert.False(t, re.MatchString("2026-08-30T12:00:00"))
	assert.False(t, re.MatchString("2026-08-30T12:00:00.000Z"))
	assert.False(t, re.MatchString("x2026-08-30T12:00:00Z"))
}

func TestEmailPattern(t *testing.T) {
	re := regexp.MustCompile(EmailPattern)

	assert.True(t, re.MatchString("uma@example.com"))
	assert.True(t, re.MatchString("first.last+tag@sub.example.no"))
	assert.False(t, re.MatchString("not-an-email"))
	assert.False(t, re.MatchString("missing@tld"))
}

func TestColumnSQL(t *testing.T) {
	col := ColumnDef{Name: "company_name", Type: "Nullable(String)", Codec: "ZSTD(1)"}
	assert.Equal(t, "company_name Nullable(String) CODEC(ZSTD(1))", col.SQL())

	plain := ColumnDef{Name: "amount", Type: "Nullable(Float64)"}
	assert.Equal(t, "amount Nullable(Float64)", plain.SQL())
}

func TestSnapshotTablesCarrySnapshotColumn(t *testing.T) {
	for _, table := range []string{TableCompanies, TableDeals, TablePipelineUnits, TableScoreHistory, TableSnapshotRegistry} {
		require.True(t, HasColumn(Registry[table].Columns, "snapshot_id"), "table %s", table)
	}
	// Owners and the reference tables are shared across snapshots.
	assert.False(t, HasColumn(Registry[TableOwners].Columns, "snapshot_id"))
	assert.False(t, HasColumn(Registry[TableDealStageReference].Columns, "snapshot_id"))
	assert.False(t, HasColumn(Registry[TableStageMapping].Columns, "snapshot_id"))
}
