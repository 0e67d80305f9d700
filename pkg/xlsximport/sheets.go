package xlsximport

import "strings"

// Kind classifies what a sheet contains.
type Kind string

const (
	KindCompanies Kind = "companies"
	KindDeals     Kind = "deals"
	KindUnknown   Kind = "unknown"
)

// companyHeaders maps normalized spreadsheet headers to hs_companies
// columns. Normalization strips case, spaces, underscores, and hyphens, so
// "Company name", "company_name", and "CompanyName" all land on the same
// key.
var companyHeaders = map[string]string{
	"recordid":       "company_id",
	"companyname":    "company_name",
	"companyowner":   "hubspot_owner_id",
	"type":           "company_type",
	"lifecyclestage": "lifecycle_stage",
	"leadstatus":     "lead_status",
}

// dealHeaders maps normalized spreadsheet headers to hs_deals columns,
// including the header variations seen across export generations.
var dealHeaders = map[string]string{
	"recordid":            "deal_id",
	"dealname":            "deal_name",
	"dealstage":           "deal_stage",
	"dealtype":            "deal_type",
	"amount":              "amount",
	"dealowner":           "owner_id",
	"associatedcompanyid": "associated_company_id",
	"companyid":           "associated_company_id",
}

// SnapshotSheets names the pair of sheets holding one historical snapshot.
type SnapshotSheets struct {
	Date         string
	CompanySheet string
	DealSheet    string
}

// SnapshotsToImport lists the historical snapshots present in the weekly
// status workbook, in chronological order. The first deal sheet carries a
// "-1" suffix in the source file.
var SnapshotsToImport = []SnapshotSheets{
	{Date: "2025-03-21", CompanySheet: "company-2025-03-21", DealSheet: "deals-2025-03-21-1"},
	{Date: "2025-03-23", CompanySheet: "company-2025-03-23", DealSheet: "deals-2025-03-23"},
	{Date: "2025-04-04", CompanySheet: "company-2025-04-04", DealSheet: "deals-2025-04-04"},
	{Date: "2025-04-06", CompanySheet: "company-2025-04-06", DealSheet: "deals-2025-04-06"},
	{Date: "2025-04-14", CompanySheet: "company-2025-04-14", DealSheet: "deals-2025-04-14"},
	{Date: "2025-04-27", CompanySheet: "company-2025-04-27", DealSheet: "deals-2025-04-27"},
	{Date: "2025-05-11", CompanySheet: "company-2025-05-11", DealSheet: "deals-2025-05-11"},
	{Date: "2025-05-18", CompanySheet: "company-2025-05-18", DealSheet: "deals-2025-05-18"},
	{Date: "2025-05-25", CompanySheet: "company-2025-05-25", DealSheet: "deals-2025-05-25"},
	{Date: "2025-06-01", CompanySheet: "company-2025-06-01", DealSheet: "deals-2025-06-01"},
}

// SnapshotID derives the snapshot id for a configured sheet pair: the date
// at midnight UTC in the canonical timestamp layout.
func (s SnapshotSheets) SnapshotID() string {
	return s.Date + "T00:00:00Z"
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// DetectKind classifies a sheet by name first, then by header shape: three
// of the canonical company headers, or two deal indicators, are enough.
// Sheets with fewer than two data rows are never classified.
func DetectKind(sheet *Sheet) Kind {
	if len(sheet.Rows) < 2 {
		return KindUnknown
	}

	name := strings.ToLower(sheet.Name)
	if strings.Contains(name, "company") {
		return KindCompanies
	}
	if strings.Contains(name, "deal") {
		return KindDeals
	}

	normalized := make(map[string]bool, len(sheet.Header))
	for _, h := range sheet.Header {
		normalized[normalizeHeader(h)] = true
	}

	companyMatches := 0
	for _, key := range []string{"recordid", "companyname", "companyowner", "lifecyclestage"} {
		if normalized[key] {
			companyMatches++
		}
	}
	if companyMatches >= 3 {
		return KindCompanies
	}

	dealMatches := 0
	for _, key := range []string{"dealname", "dealstage", "dealtype", "dealowner", "amount"} {
		if normalized[key] {
			dealMatches++
		}
	}
	if dealMatches >= 2 {
		return KindDeals
	}

	return KindUnknown
}
