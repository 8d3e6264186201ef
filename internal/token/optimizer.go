package token

import (
	"fmt"
	"sort"
	"strings"
)

// Priority of an optimization suggestion.
type Priority string

// Suggestion priorities, highest first.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion is one proposed reduction, with its estimated savings.
type Suggestion struct {
	Source           string   `json:"source"`
	Action           string   `json:"action"`
	EstimatedSavings int      `json:"estimated_savings"`
	Priority         Priority `json:"priority"`
}

// Report is the optimizer's output for a budget check.
type Report struct {
	TotalTokens int          `json:"total_tokens"`
	Budget      int          `json:"budget"`
	OverBudget  bool         `json:"over_budget"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Optimize analyzes counts against a budget. Within budget it reports
// clean; over budget it ranks suggestions by estimated savings and keeps
// only enough to close the gap.
func Optimize(counts []FileCount, budget int) Report {
	report := Report{Budget: budget}
	for _, c := range counts {
		report.TotalTokens += c.Tokens
	}
	if budget <= 0 || report.TotalTokens <= budget {
		return report
	}
	report.OverBudget = true
	excess := report.TotalTokens - budget

	sorted := make([]FileCount, len(counts))
	copy(sorted, counts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tokens > sorted[j].Tokens })

	var suggestions []Suggestion
	for _, c := range sorted {
		if c.Tokens > 2000 {
			savings := c.Tokens / 3
			suggestions = append(suggestions, Suggestion{
				Source:           c.Source,
				Action:           fmt.Sprintf("Split into focused sections (%d tokens, could save ~%d)", c.Tokens, savings),
				EstimatedSavings: savings,
				Priority:         PriorityHigh,
			})
		}
		if c.Lines > 0 && c.Tokens/c.Lines > 20 {
			suggestions = append(suggestions, Suggestion{
				Source:           c.Source,
				Action:           "Condense verbose descriptions",
				EstimatedSavings: c.Tokens / 4,
				Priority:         PriorityMedium,
			})
		}
	}

	// Sibling files with near-identical names are consolidation candidates.
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if similarSources(sorted[i].Source, sorted[j].Source) {
				savings := min(sorted[i].Tokens, sorted[j].Tokens) / 2
				suggestions = append(suggestions, Suggestion{
					Source:           sorted[i].Source + " + " + sorted[j].Source,
					Action:           "Consolidate similar files",
					EstimatedSavings: savings,
					Priority:         PriorityMedium,
				})
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].EstimatedSavings > suggestions[j].EstimatedSavings
	})

	cumulative := 0
	for _, s := range suggestions {
		if cumulative >= excess {
			break
		}
		cumulative += s.EstimatedSavings
		report.Suggestions = append(report.Suggestions, s)
	}
	return report
}

// SuggestForContent inspects a single artifact body for local reductions:
// duplicate lines, comment-heavy bodies, and very long lines.
func SuggestForContent(source, content string) ([]Suggestion, error) {
	tokens, err := Count(content)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(content, "\n")
	var suggestions []Suggestion

	seen := make(map[string]bool)
	duplicates := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 20 && seen[trimmed] {
			duplicates++
		}
		seen[trimmed] = true
	}
	if duplicates > 2 {
		suggestions = append(suggestions, Suggestion{
			Source:           source,
			Action:           fmt.Sprintf("Remove %d duplicate lines", duplicates),
			EstimatedSavings: duplicates * 15,
			Priority:         PriorityHigh,
		})
	}

	longLines := 0
	for _, line := range lines {
		if len(line) > 200 {
			longLines++
		}
	}
	if longLines > 3 {
		suggestions = append(suggestions, Suggestion{
			Source:           source,
			Action:           fmt.Sprintf("Truncate %d very long lines (>200 chars)", longLines),
			EstimatedSavings: longLines * 30,
			Priority:         PriorityLow,
		})
	}

	if tokens > 4000 {
		suggestions = append(suggestions, Suggestion{
			Source:           source,
			Action:           fmt.Sprintf("File is very large (%d tokens); consider splitting into sections", tokens),
			EstimatedSavings: tokens / 3,
			Priority:         PriorityHigh,
		})
	}
	return suggestions, nil
}

// similarSources reports whether two paths live in the same directory
// with a long shared filename prefix.
func similarSources(a, b string) bool {
	ai := strings.LastIndexByte(a, '/')
	bi := strings.LastIndexByte(b, '/')
	if ai < 0 || bi < 0 || a[:ai] != b[:bi] {
		return false
	}
	aName, bName := a[ai+1:], b[bi+1:]
	common := 0
	for common < len(aName) && common < len(bName) && aName[common] == bName[common] {
		common++
	}
	return common >= 5
}
