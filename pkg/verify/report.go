// Package verify runs post-pipeline integrity checks over the warehouse:
// referential resolution, required-field completeness, uniqueness, format
// validity, and enum normalization. Read-only; issues are reported, never
// repaired.
package verify

import "time"

// Check type names as they appear in reports.
const (
	CheckReferential = "referential"
	CheckRequired    = "required_field"
	CheckUnique      = "uniqueness"
	CheckFormat      = "format"
	CheckEnum        = "enum_normalization"
	CheckError       = "check_error"
)

// Issue severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Issue is one reportable finding: a table/column pair, the check that
// flagged it, and how many rows are affected.
type Issue struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Check       string `json:"check"`
	Count       uint64 `json:"count"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Report aggregates every issue from one verification run. All checks run
// regardless of earlier findings; nothing short-circuits.
type Report struct {
	Timestamp     time.Time `json:"timestamp"`
	Dataset       string    `json:"dataset"`
	TablesChecked int       `json:"tables_checked"`
	Issues        []Issue   `json:"issues"`
	Critical      int       `json:"critical_issues"`
	Warnings      int       `json:"warning_issues"`
	Infos         int       `json:"info_issues"`

	// Passed is true when the run produced zero critical issues.
	Passed bool `json:"passed"`
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	switch issue.Severity {
	case SeverityCritical:
		r.Critical++
	case SeverityWarning:
		r.Warnings++
	default:
		r.Infos++
	}
}

// IssuesBySeverity filters the issue list.
func (r *Report) IssuesBySeverity(severity string) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}
