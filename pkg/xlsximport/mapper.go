package xlsximport

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/db/models"
)

// lifecycleAliases folds spreadsheet display values onto the internal
// lifecycle stage tokens.
var lifecycleAliases = map[string]string{
	"sales qualified lead": "salesqualifiedlead",
}

// Mapper converts cleaned sheets into warehouse rows aligned to the
// registry's column order.
type Mapper struct {
	Owners OwnerLookup
	Logger *zap.Logger
}

// MapCompanies maps a company sheet onto hs_companies rows. Rows without a
// record id are skipped and counted; every returned row matches the table's
// declared column count.
func (m *Mapper) MapCompanies(sheet *Sheet, snapshotID string, ts time.Time) ([][]any, error) {
	index := headerIndex(sheet.Header, companyHeaders)
	if _, ok := index["company_id"]; !ok {
		return nil, fmt.Errorf("sheet %q has no record id header", sheet.Name)
	}

	var rows [][]any
	skipped := 0
	for _, row := range sheet.Rows {
		id := cleanID(cell(row, index["company_id"]))
		if id == "" {
			skipped++
			continue
		}

		values := map[string]any{
			"company_id":       id,
			"company_name":     nullable(cell(row, lookup(index, "company_name"))),
			"lifecycle_stage":  nullable(normalizeLifecycle(cell(row, lookup(index, "lifecycle_stage")))),
			"lead_status":      nullable(normalizeLeadStatus(cell(row, lookup(index, "lead_status")))),
			"hubspot_owner_id": nullable(m.Owners.Resolve(cell(row, lookup(index, "hubspot_owner_id")))),
			"company_type":     nullable(strings.ToLower(cell(row, lookup(index, "company_type")))),
		}
		rows = append(rows, assemble(models.TableCompanies, values, snapshotID, ts))
	}

	if skipped > 0 {
		m.Logger.Warn("Skipped company rows without record id",
			zap.String("sheet", sheet.Name),
			zap.Int("skipped", skipped),
		)
	}
	return rows, nil
}

// MapDeals maps a deal sheet onto hs_deals rows.
func (m *Mapper) MapDeals(sheet *Sheet, snapshotID string, ts time.Time) ([][]any, error) {
	index := headerIndex(sheet.Header, dealHeaders)
	if _, ok := index["deal_id"]; !ok {
		return nil, fmt.Errorf("sheet %q has no record id header", sheet.Name)
	}

	var rows [][]any
	skipped := 0
	for _, row := range sheet.Rows {
		id := cleanID(cell(row, index["deal_id"]))
		if id == "" {
			skipped++
			continue
		}

		values := map[string]any{
			"deal_id":               id,
			"deal_name":             nullable(cell(row, lookup(index, "deal_name"))),
			"deal_stage":            nullable(strings.ToLower(cell(row, lookup(index, "deal_stage")))),
			"deal_type":             nullable(strings.ToLower(cell(row, lookup(index, "deal_type")))),
			"amount":                parseAmount(cell(row, lookup(index, "amount"))),
			"owner_id":              nullable(m.Owners.Resolve(cell(row, lookup(index, "owner_id")))),
			"associated_company_id": nullable(cleanID(cell(row, lookup(index, "associated_company_id")))),
		}
		rows = append(rows, assemble(models.TableDeals, values, snapshotID, ts))
	}

	if skipped > 0 {
		m.Logger.Warn("Skipped deal rows without record id",
			zap.String("sheet", sheet.Name),
			zap.Int("skipped", skipped),
		)
	}
	return rows, nil
}

// headerIndex resolves sheet headers against a header map, keeping the
// first hit per column.
func headerIndex(header []string, headerMap map[string]string) map[string]int {
	index := map[string]int{}
	for i, h := range header {
		col, ok := headerMap[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, exists := index[col]; !exists {
			index[col] = i
		}
	}
	return index
}

func lookup(index map[string]int, col string) int {
	if i, ok := index[col]; ok {
		return i
	}
	return -1
}

// assemble lays the mapped values out in the table's declared column order,
// stamping the snapshot id and timestamp. Columns without a value are null.
func assemble(table string, values map[string]any, snapshotID string, ts time.Time) []any {
	columns := models.Registry[table].Columns
	row := make([]any, 0, len(columns))
	for _, col := range columns {
		switch col.Name {
		case "snapshot_id":
			row = append(row, snapshotID)
		case "record_timestamp":
			row = append(row, ts)
		default:
			if v, ok := values[col.Name]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
	}
	return row
}

// cleanID normalizes a spreadsheet id cell. Numeric cells come back in
// float formatting ("35975295.0", "1.5968929E9"); those are reformatted as
// plain integers.
func cleanID(s string) string {
	if s == "" || !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseAmount reads a currency cell, stripping symbols and thousand
// separators. Unparseable values become null rather than failing the row.
func parseAmount(s string) *float64 {
	if s == "" {
		return nil
	}
	cleaned := strings.NewReplacer("$", "", "€", "", "kr", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

func normalizeLifecycle(s string) string {
	lower := strings.ToLower(s)
	if alias, ok := lifecycleAliases[lower]; ok {
		return alias
	}
	return lower
}

func normalizeLeadStatus(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
