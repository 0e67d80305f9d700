// Package ingest turns CRM records into warehouse rows: field-map
// translation, enum normalization, and snapshot stamping, followed by the
// batched load and registry/event bookkeeping.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nordlys/crmx/pkg/crm"
	"github.com/nordlys/crmx/pkg/db/models"
)

// lowercaseColumns lists the enum-like columns normalized to lowercase on
// ingest so downstream joins and filters never case-fold.
var lowercaseColumns = map[string]map[string]bool{
	models.TableCompanies: {
		"lifecycle_stage":       true,
		"lead_status":           true,
		"company_type":          true,
		"development_category":  true,
		"hiring_developers":     true,
		"inhouse_developers":    true,
		"proff_likviditetsgrad": true,
		"proff_lonnsomhet":      true,
		"proff_soliditet":       true,
		"proff_link":            true,
	},
	models.TableDeals: {
		"deal_stage": true,
		"deal_type":  true,
	},
	models.TableOwners: {
		"email": true,
	},
}

// Properties returns the CRM property names to request for an entity,
// derived from its field map. The id and association pseudo-fields are not
// properties and are excluded.
func Properties(entity string) []string {
	fieldMap := models.EntityFieldMaps[entity]
	props := make([]string, 0, len(fieldMap))
	for _, prop := range fieldMap {
		if prop == "id" || prop == "associations" {
			continue
		}
		props = append(props, prop)
	}
	return props
}

// MapRecords aligns fetched CRM records to the entity's declared column
// order, stamping each row with the snapshot id and timestamp. Unmapped
// schema fields become null; source fields outside the map are dropped.
// Every returned row has exactly as many values as the entity declares
// columns.
func MapRecords(entity string, records []crm.Record, snapshotID string, ts time.Time) ([][]any, error) {
	tableName, ok := models.EntityTables[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	table := models.Registry[tableName]
	fieldMap := models.EntityFieldMaps[entity]
	lower := lowercaseColumns[tableName]

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, 0, len(table.Columns))
		for _, col := range table.Columns {
			switch col.Name {
			case "snapshot_id":
				row = append(row, snapshotID)
				continue
			case "record_timestamp":
				row = append(row, ts)
				continue
			}

			prop, mapped := fieldMap[col.Name]
			if !mapped {
				row = append(row, nil)
				continue
			}

			var raw string
			switch prop {
			case "id":
				raw = record.ID
			case "associations":
				raw = record.AssociatedID("companies")
			default:
				raw = record.Property(prop)
			}

			raw = strings.TrimSpace(raw)
			if lower[col.Name] {
				raw = strings.ToLower(raw)
			}

			value, err := coerce(col, raw)
			if err != nil {
				return nil, fmt.Errorf("%s row %s, column %s: %w", entity, record.ID, col.Name, err)
			}
			row = append(row, value)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// MapOwners aligns CRM owners to the hs_owners column order. Owners are
// reference data: no snapshot stamp, timestamp records the fetch time.
func MapOwners(owners []crm.Owner, ts time.Time) [][]any {
	rows := make([][]any, 0, len(owners))
	for _, owner := range owners {
		email := strings.ToLower(strings.TrimSpace(owner.Email))
		var userID *string
		if owner.UserID != 0 {
			s := strconv.FormatInt(owner.UserID, 10)
			userID = &s
		}

		rows = append(rows, []any{
			owner.ID,
			nullable(email),
			nullable(strings.TrimSpace(owner.FirstName)),
			nullable(strings.TrimSpace(owner.LastName)),
			userID,
			!owner.Archived,
			ts,
		})
	}
	return rows
}

// MapPipelines flattens CRM deal pipelines into deal stage reference rows.
func MapPipelines(pipelines []crm.Pipeline) []*models.DealStageReference {
	var rows []*models.DealStageReference
	for _, p := range pipelines {
		label := p.Label
		for _, stage := range p.Stages {
			stageLabel := stage.Label
			rows = append(rows, &models.DealStageReference{
				PipelineID:    p.ID,
				PipelineLabel: nullable(label),
				StageID:       strings.ToLower(stage.ID),
				StageLabel:    nullable(stageLabel),
				IsClosed:      stage.IsClosed(),
				Probability:   stage.Probability(),
				DisplayOrder:  stage.DisplayOrder,
			})
		}
	}
	return rows
}

// coerce converts a raw property string to the column's Go value. Empty
// strings become null for nullable columns and stay empty for plain String.
func coerce(col models.ColumnDef, raw string) (any, error) {
	switch col.Type {
	case "String":
		return raw, nil
	case "Nullable(String)":
		return nullable(raw), nil
	case "Nullable(Float64)":
		if raw == "" {
			return (*float64)(nil), nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q as float: %w", raw, err)
		}
		return &f, nil
	case "Nullable(Int32)":
		if raw == "" {
			return (*int32)(nil), nil
		}
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %q as int: %w", raw, err)
		}
		v := int32(n)
		return &v, nil
	case "Bool":
		if raw == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %q as bool: %w", raw, err)
		}
		return b, nil
	}
	// DateTime columns are stamped directly, never coerced from properties.
	return nil, fmt.Errorf("unsupported column type %s", col.Type)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
