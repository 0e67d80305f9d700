package scoring

import "strings"

// CombinedStage derives the merged pipeline position from a company's
// lifecycle stage plus its lead status and (open) deal stage. This mirrors
// the CASE expression in the unit-score query; keeping the rule in Go makes
// the precedence directly testable.
//
// Precedence:
//   - "lead"                      -> "lead/{lead_status}" ("unknown" when blank)
//   - "opportunity"               -> "opportunity/{deal_stage}" ("missing" when blank)
//   - "salesqualifiedlead" (or the spaced spelling) -> "salesqualifiedlead"
//   - "closed-won"/"disqualified" -> the bare lifecycle stage
//   - anything else               -> "unmapped"
func CombinedStage(lifecycleStage, leadStatus, dealStage string) string {
	switch strings.ToLower(strings.TrimSpace(lifecycleStage)) {
	case "lead":
		status := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(leadStatus)), " ", "_")
		if status == "" {
			status = "unknown"
		}
		return "lead/" + status
	case "opportunity":
		stage := strings.ToLower(strings.TrimSpace(dealStage))
		if stage == "" {
			stage = "missing"
		}
		return "opportunity/" + stage
	case "salesqualifiedlead", "sales qualified lead":
		return "salesqualifiedlead"
	case "closed-won":
		return "closed-won"
	case "disqualified":
		return "disqualified"
	default:
		return "unmapped"
	}
}
