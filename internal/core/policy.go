package core

import (
	"fmt"
	"sort"
	"strings"
)

// Policy enforces the tool allowlist parsed from a comma-separated env var.
type Policy struct {
	allowedTools map[string]bool
}

// NewPolicy creates a Policy from a comma-separated allowlist string.
// An empty string allows every tool.
func NewPolicy(toolCSV string) *Policy {
	return &Policy{allowedTools: parseCSV(toolCSV)}
}

// Restricted reports whether an allowlist is in effect.
func (p *Policy) Restricted() bool {
	return p != nil && len(p.allowedTools) > 0
}

// CheckTool returns an error if toolName is not in the allowlist.
func (p *Policy) CheckTool(toolName string) error {
	if !p.Restricted() {
		return nil
	}
	if !p.allowedTools[toolName] {
		return fmt.Errorf("tool %q not in allowlist", toolName)
	}
	return nil
}

// Allowed returns the allowlisted entries in sorted order.
func (p *Policy) Allowed() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.allowedTools))
	for name := range p.allowedTools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func parseCSV(s string) map[string]bool {
	m := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			m[item] = true
		}
	}
	return m
}
