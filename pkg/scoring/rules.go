// Package scoring runs the per-snapshot scoring stage: stage-mapping
// reload, the unit-score join query, and the score-history aggregation.
package scoring

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nordlys/crmx/pkg/db/models"
)

//go:embed stage_mapping.yaml
var stageMappingYAML []byte

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	LifecycleStage string  `yaml:"lifecycle_stage"`
	LeadStatus     string  `yaml:"lead_status"`
	DealStage      string  `yaml:"deal_stage"`
	CombinedStage  string  `yaml:"combined_stage"`
	StageLevel     int32   `yaml:"stage_level"`
	AdjustedScore  float64 `yaml:"adjusted_score"`
}

// LoadStageRules parses the embedded rule set. Absent lead_status/deal_stage
// keys become null columns, matching the lookup's triple semantics.
func LoadStageRules() ([]*models.StageMapping, error) {
	var file ruleFile
	if err := yaml.Unmarshal(stageMappingYAML, &file); err != nil {
		return nil, fmt.Errorf("parse stage mapping rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("stage mapping rule set is empty")
	}

	seen := make(map[string]bool, len(file.Rules))
	rules := make([]*models.StageMapping, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if entry.CombinedStage == "" {
			return nil, fmt.Errorf("rule %d: combined_stage is required", i)
		}
		if seen[entry.CombinedStage] {
			return nil, fmt.Errorf("rule %d: duplicate combined_stage %q", i, entry.CombinedStage)
		}
		seen[entry.CombinedStage] = true

		rules = append(rules, &models.StageMapping{
			LifecycleStage: optional(entry.LifecycleStage),
			LeadStatus:     optional(entry.LeadStatus),
			DealStage:      optional(entry.DealStage),
			CombinedStage:  entry.CombinedStage,
			StageLevel:     entry.StageLevel,
			AdjustedScore:  entry.AdjustedScore,
		})
	}
	return rules, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
