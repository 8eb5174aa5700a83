package enrich

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Object parsing runs through an explicit ordered list of strategies,
// stopping at the first success:
//
//  1. Locate the first balanced {...} span and parse it as JSON.
//  2. Repair the span (quote bare keys, single quotes to double quotes,
//     strip trailing commas) and parse again.
//  3. Scrape per-field "key: value" lines from the raw text.
//
// A strategy returning ok=false hands over to the next one; parsing never
// raises an error, only degrades.
type objectStrategy func(raw string) (map[string]any, bool)

var objectStrategies = []objectStrategy{
	parseDirectObject,
	parseRepairedObject,
	parseLabeledLines,
}

// ParseEnrichment extracts enrichment fields from untrusted model output.
// The outcome reports confidence: ParseFull when category, priority, and
// summary were all recovered; ParsePartial when at least one field was;
// ParseFailed otherwise (the returned Result is then nil).
func ParseEnrichment(raw string) (*Result, ParseOutcome) {
	var obj map[string]any
	ok := false
	for _, strategy := range objectStrategies {
		if obj, ok = strategy(raw); ok {
			break
		}
	}
	if !ok {
		return nil, ParseFailed
	}

	res := &Result{
		ActionItems: []string{},
		ContactInfo: map[string]string{},
	}
	recovered := 0

	if v, ok := stringField(obj, "category"); ok {
		res.Category = NormalizeCategory(v)
		recovered++
	} else {
		res.Category = CategoryUncategorized
	}

	if v, ok := stringField(obj, "priority"); ok {
		res.Priority = NormalizePriority(v)
		recovered++
	} else {
		res.Priority = PriorityDefault
	}

	if v, ok := stringField(obj, "priority_reason", "priority_explanation", "reason"); ok {
		res.PriorityReason = strings.TrimSpace(v)
	}

	summaryOK := false
	if v, ok := stringField(obj, "summary"); ok && strings.TrimSpace(v) != "" {
		res.Summary = clampSummary(v)
		recovered++
		summaryOK = true
	} else {
		res.Summary = SummaryDefault
	}

	if v, ok := obj["action_items"]; ok {
		res.ActionItems = coerceStringList(v)
		recovered++
	}
	if v, ok := obj["contact_info"]; ok {
		res.ContactInfo = coerceStringMap(v)
		recovered++
	}

	if recovered == 0 {
		return nil, ParseFailed
	}

	core := 0
	if _, ok := stringField(obj, "category"); ok {
		core++
	}
	if _, ok := stringField(obj, "priority"); ok {
		core++
	}
	if summaryOK {
		core++
	}
	if core == 3 {
		return res, ParseFull
	}
	return res, ParsePartial
}

// extractBalancedSpan returns the first balanced span opened by open and
// closed by close, tracking quoted strings (both quote styles) and escapes.
func extractBalancedSpan(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case quote != 0:
			if ch == '\\' {
				escaped = true
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

var (
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// repairJSON applies textual repair heuristics to almost-JSON: single
// quotes become double quotes, bare object keys get quoted, and trailing
// commas before closing brackets are stripped.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)
	s = bareKeyPattern.ReplaceAllString(s, `$1"$2":`)
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return s
}

func parseDirectObject(raw string) (map[string]any, bool) {
	span, ok := extractBalancedSpan(raw, '{', '}')
	if !ok {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func parseRepairedObject(raw string) (map[string]any, bool) {
	span, ok := extractBalancedSpan(raw, '{', '}')
	if !ok {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(repairJSON(span)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// labeledLinePatterns recover individual fields from "key: value" prose.
var labeledLinePatterns = map[string]*regexp.Regexp{
	"category":        regexp.MustCompile(`(?mi)^[\s"'*-]*category["']?\s*[:=]\s*["']?([^"'\n,}]+)`),
	"priority":        regexp.MustCompile(`(?mi)^[\s"'*-]*priority["']?\s*[:=]\s*["']?([^"'\n,}]+)`),
	"priority_reason": regexp.MustCompile(`(?mi)^[\s"'*-]*(?:priority_reason|priority_explanation|reason)["']?\s*[:=]\s*["']?([^"'\n}]+)`),
	"summary":         regexp.MustCompile(`(?mi)^[\s"'*-]*summary["']?\s*[:=]\s*["']?([^"'\n}]+)`),
}

func parseLabeledLines(raw string) (map[string]any, bool) {
	obj := make(map[string]any)
	for key, pattern := range labeledLinePatterns {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			val := strings.TrimSpace(m[1])
			if val != "" {
				obj[key] = val
			}
		}
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// ParseActionItems extracts a string list from untrusted model output.
// Fallback order: JSON array, repaired JSON array, bullet or numbered
// lines, whole response as a single item, empty list.
func ParseActionItems(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || isNoneResponse(trimmed) {
		return []string{}
	}

	if span, ok := extractBalancedSpan(raw, '[', ']'); ok {
		var arr []any
		if err := json.Unmarshal([]byte(span), &arr); err == nil {
			return coerceStringList(arr)
		}
		if err := json.Unmarshal([]byte(repairJSON(span)), &arr); err == nil {
			return coerceStringList(arr)
		}
	}

	if items := parseBulletLines(trimmed); len(items) > 0 {
		return items
	}

	return []string{trimmed}
}

var bulletPattern = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

func parseBulletLines(raw string) []string {
	matches := bulletPattern.FindAllStringSubmatch(raw, -1)
	items := make([]string, 0, len(matches))
	for _, m := range matches {
		item := strings.TrimSpace(m[1])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ParseContactInfo extracts a string map from untrusted model output.
// Fallback order: JSON object, repaired JSON object, labeled contact
// lines (email:, phone:, name:), empty map.
func ParseContactInfo(raw string) map[string]string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || isNoneResponse(trimmed) {
		return map[string]string{}
	}

	if span, ok := extractBalancedSpan(raw, '{', '}'); ok {
		var obj map[string]any
		if err := json.Unmarshal([]byte(span), &obj); err == nil {
			return coerceStringMap(obj)
		}
		if err := json.Unmarshal([]byte(repairJSON(span)), &obj); err == nil {
			return coerceStringMap(obj)
		}
	}

	return parseContactLines(trimmed)
}

var contactLinePattern = regexp.MustCompile(`(?mi)^[\s*-]*(name|email|phone|company|title|address|website)\s*[:=]\s*(.+)$`)

func parseContactLines(raw string) map[string]string {
	info := make(map[string]string)
	for _, m := range contactLinePattern.FindAllStringSubmatch(raw, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		val := strings.TrimSpace(m[2])
		if val != "" {
			info[key] = val
		}
	}
	return info
}

// ParsePriorityResponse parses the narrower priority+explanation call.
// The first whitespace-delimited token must exactly equal a member of the
// priority set; a bare substring match is too fragile when the model
// prepends preamble. Failing that, later lines are scanned for one whose
// first token is a priority. Unknown values normalize to the default.
func ParsePriorityResponse(raw string) (priority, explanation string) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		token := strings.Trim(fields[0], `"'.,:*`)
		for _, p := range Priorities {
			if strings.EqualFold(token, p) {
				rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
				rest = strings.TrimLeft(rest, ":-. ")
				remainder := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
				if rest != "" && remainder != "" {
					rest += " " + remainder
				} else if rest == "" {
					rest = remainder
				}
				return p, rest
			}
		}
		// Only the first non-empty line and subsequent lines are
		// candidates; keep scanning.
	}
	return PriorityDefault, ""
}

func isNoneResponse(s string) bool {
	switch strings.ToLower(strings.Trim(s, `"'.,![]{}()`)) {
	case "none", "n/a", "no", "nothing", "no action items", "no contact info", "no contact information":
		return true
	}
	return false
}

func stringField(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			switch val := v.(type) {
			case string:
				if strings.TrimSpace(val) != "" {
					return val, true
				}
			case float64:
				return fmt.Sprintf("%v", val), true
			}
		}
	}
	return "", false
}

func coerceStringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return []string{}
	}
	items := make([]string, 0, len(arr))
	for _, elem := range arr {
		switch val := elem.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				items = append(items, strings.TrimSpace(val))
			}
		case map[string]any:
			// Some models wrap items in objects: {"item": "..."}.
			if s, ok := stringField(val, "item", "task", "action", "text", "description"); ok {
				items = append(items, strings.TrimSpace(s))
			}
		}
	}
	return items
}

func coerceStringMap(v any) map[string]string {
	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	info := make(map[string]string, len(obj))
	for k, raw := range obj {
		switch val := raw.(type) {
		case string:
			if strings.TrimSpace(val) != "" {
				info[strings.ToLower(k)] = strings.TrimSpace(val)
			}
		case float64:
			info[strings.ToLower(k)] = fmt.Sprintf("%v", val)
		}
	}
	return info
}
