// Package xlsximport loads historical snapshots from spreadsheet exports:
// sheet detection, header mapping, owner-name resolution, and the batched
// load into the warehouse.
package xlsximport

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed owners.yaml
var ownersYAML []byte

// OwnerLookup resolves owner display names from spreadsheet exports to CRM
// owner ids. Keys are lowercase.
type OwnerLookup map[string]string

// LoadOwnerLookup parses the embedded owner name table.
func LoadOwnerLookup() (OwnerLookup, error) {
	lookup := OwnerLookup{}
	if err := yaml.Unmarshal(ownersYAML, &lookup); err != nil {
		return nil, fmt.Errorf("parse owner lookup: %w", err)
	}
	if len(lookup) == 0 {
		return nil, fmt.Errorf("owner lookup is empty")
	}
	for name, id := range lookup {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("owner lookup entry %q has no id", name)
		}
	}
	return lookup, nil
}

// Resolve maps an owner display name to its CRM owner id. Exact matches win;
// otherwise the longest key contained in the name (or containing it) is
// used. Unknown names are returned unchanged so a load never silently drops
// the column, and the verifier surfaces them as orphan references.
func (l OwnerLookup) Resolve(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}

	lower := strings.ToLower(trimmed)
	if id, ok := l[lower]; ok {
		return id
	}

	var candidates []string
	for key := range l {
		if strings.Contains(lower, key) || strings.Contains(key, lower) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return trimmed
	}

	// Longest key is the most specific match; ties break lexicographically
	// so resolution is deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return l[candidates[0]]
}
