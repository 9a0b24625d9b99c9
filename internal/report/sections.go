// Package report defines the fixed section plan of a generated report and the
// placeholder substitution applied to section content.
package report

import (
	"regexp"
	"sort"
	"strings"
)

// Section is one entry of the fixed, ordered report outline. Keywords drive
// retrieval for the section; Template is the deterministic fallback used when
// no generation provider is configured or a provider call fails.
type Section struct {
	ID       string
	Title    string
	Keywords []string
	Template string
}

// PendingPlaceholder is the visible marker a failed section degrades to. A
// single section failure never aborts the generation run.
const PendingPlaceholder = "_This section is pending: its source material could not be retrieved or generated._"

// Sections returns the report outline in generation order.
func Sections() []Section {
	return []Section{
		{
			ID:       "executive_summary",
			Title:    "Executive Summary",
			Keywords: []string{"summary", "objectives", "key findings", "recommendation"},
			Template: "This report was prepared for {{client}} as part of the {{project_title}} engagement. The analysis below draws on the project's source material.\n\n{{context}}",
		},
		{
			ID:       "company_overview",
			Title:    "Company Overview",
			Keywords: []string{"company", "organization", "business model", "structure"},
			Template: "{{client}} is the subject of this engagement. Source material relevant to the organization:\n\n{{context}}",
		},
		{
			ID:       "current_state",
			Title:    "Current State Assessment",
			Keywords: []string{"current state", "process", "operations", "challenges", "issues"},
			Template: "The current state of {{client}} was assessed against the uploaded project documentation.\n\n{{context}}",
		},
		{
			ID:       "findings",
			Title:    "Key Findings",
			Keywords: []string{"findings", "analysis", "data", "results", "metrics"},
			Template: "The following findings are grounded in the project's source documents.\n\n{{context}}",
		},
		{
			ID:       "recommendations",
			Title:    "Recommendations",
			Keywords: []string{"recommendation", "improvement", "action", "solution"},
			Template: "Based on the methodologies applied ({{methodologies}}), the following recommendations were derived.\n\n{{context}}",
		},
		{
			ID:       "roadmap",
			Title:    "Implementation Roadmap",
			Keywords: []string{"roadmap", "timeline", "milestones", "phases", "plan"},
			Template: "A phased implementation is proposed for {{project_title}}.\n\n{{context}}",
		},
		{
			ID:       "risks",
			Title:    "Risks and Mitigations",
			Keywords: []string{"risk", "mitigation", "dependency", "constraint"},
			Template: "Risks identified from the source material of {{project_title}}:\n\n{{context}}",
		},
	}
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Substitute resolves every {{placeholder}} in content. Unknown placeholders
// resolve to the empty string so none survive into the output.
func Substitute(content string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return vars[key]
	})
}

// Placeholders lists the distinct placeholder names in content, sorted.
func Placeholders(content string) []string {
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		seen[match[1]] = true
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// JoinList renders a string list for placeholder values.
func JoinList(items []string) string {
	if len(items) == 0 {
		return "n/a"
	}
	return strings.Join(items, ", ")
}
