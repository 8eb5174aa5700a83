// Package enrich derives structured metadata from email content: a
// category, a priority with explanation, a summary, action items, and
// contact information.
//
// Model output is untrusted prose, not a contract. Parsing runs through
// ordered fallback strategies, and every recovered value is validated
// against its known domain before it is kept.
package enrich

import (
	"strings"
	"time"
)

// Categories is the fixed category set. Values outside it normalize to
// CategoryUncategorized.
var Categories = []string{
	"Work",
	"Personal",
	"Finance",
	"Shopping",
	"Travel",
	"Social",
	"Newsletters",
	"Spam",
}

// CategoryUncategorized is the default category.
const CategoryUncategorized = "Uncategorized"

// Priorities is the fixed ordered priority set. Values outside it
// normalize to PriorityDefault.
var Priorities = []string{"Low", "Medium", "High"}

// PriorityDefault is the default priority.
const PriorityDefault = "Medium"

// SummaryDefault is the summary used when no model output is available.
const SummaryDefault = "No summary available"

// maxSummaryLength bounds summaries in runes.
const maxSummaryLength = 500

// Result is the enrichment output for one email.
type Result struct {
	Category       string            `json:"category"`
	Priority       string            `json:"priority"`
	PriorityReason string            `json:"priority_reason,omitempty"`
	Summary        string            `json:"summary"`
	ActionItems    []string          `json:"action_items"`
	ContactInfo    map[string]string `json:"contact_info"`

	// Degraded is true when every field carries its default because the
	// model was unreachable, its output unusable, or the content too short.
	Degraded bool `json:"degraded,omitempty"`

	// Processing metadata.
	Model   string        `json:"model,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// DefaultResult returns the degraded default tuple.
func DefaultResult(model string) *Result {
	return &Result{
		Category:    CategoryUncategorized,
		Priority:    PriorityDefault,
		Summary:     SummaryDefault,
		ActionItems: []string{},
		ContactInfo: map[string]string{},
		Degraded:    true,
		Model:       model,
	}
}

// ParseOutcome reports the parser's confidence in what it recovered.
type ParseOutcome int

const (
	// ParseFailed means no strategy recovered anything usable.
	ParseFailed ParseOutcome = iota

	// ParsePartial means some but not all core fields were recovered.
	ParsePartial

	// ParseFull means category, priority, and summary were all recovered.
	ParseFull
)

func (o ParseOutcome) String() string {
	switch o {
	case ParseFull:
		return "full"
	case ParsePartial:
		return "partial"
	default:
		return "failed"
	}
}

// NormalizeCategory maps a raw value into the fixed category set.
// Unknown values normalize to CategoryUncategorized, never stored verbatim.
func NormalizeCategory(raw string) string {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'.,`))
	for _, c := range Categories {
		if strings.EqualFold(cleaned, c) {
			return c
		}
	}
	return CategoryUncategorized
}

// NormalizePriority maps a raw value into the fixed priority set.
// Unknown values (a hallucinated "Critical", say) normalize to PriorityDefault.
func NormalizePriority(raw string) string {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'.,:`))
	for _, p := range Priorities {
		if strings.EqualFold(cleaned, p) {
			return p
		}
	}
	return PriorityDefault
}

// clampSummary bounds a summary to maxSummaryLength runes.
func clampSummary(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxSummaryLength {
		return s
	}
	return strings.TrimSpace(string(runes[:maxSummaryLength])) + "..."
}
