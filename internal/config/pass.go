package config

import (
	"fmt"
	"slices"
	"strings"
)

// PassKind identifies one benchmark pass: the same services run against
// ephemeral (memory) or persistent (db) storage.
type PassKind string

const (
	PassMemory   PassKind = "memory"
	PassDatabase PassKind = "db"
)

// AllPasses lists the supported passes in their default execution order.
var AllPasses = []PassKind{PassMemory, PassDatabase}

// ParsePass validates a pass name.
func ParsePass(name string) (PassKind, error) {
	p := PassKind(strings.TrimSpace(name))
	if !slices.Contains(AllPasses, p) {
		return "", &ConfigurationError{Field: "passes", Reason: fmt.Sprintf("unsupported pass: %q (supported: %s, %s)", name, PassMemory, PassDatabase)}
	}
	return p, nil
}

// ParsePasses parses a list of pass names, rejecting unknown or repeated
// entries and a list that names no pass at all.
func ParsePasses(names []string) ([]PassKind, error) {
	seen := make(map[PassKind]bool, len(names))
	out := make([]PassKind, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		p, err := ParsePass(n)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			return nil, &ConfigurationError{Field: "passes", Reason: fmt.Sprintf("pass %q listed twice", p)}
		}
		seen[p] = true
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{Field: "passes", Reason: "at least one pass is required"}
	}
	return out, nil
}

// SplitPasses parses a comma separated --passes value.
func SplitPasses(list string) ([]PassKind, error) {
	return ParsePasses(strings.Split(list, ","))
}

// Title is the human label used in summary headings.
func (p PassKind) Title() string {
	if p == PassMemory {
		return "Memory"
	}
	return "DB"
}

// Persistent reports whether the pass runs against persistent storage and
// therefore needs seeding.
func (p PassKind) Persistent() bool {
	return p == PassDatabase
}
