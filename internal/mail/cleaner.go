package mail

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

// htmlTagPattern decides whether a body needs HTML-to-text conversion.
// Plain text bodies are passed through untouched so cleaning stays idempotent.
var htmlTagPattern = regexp.MustCompile(`(?i)<\s*(html|head|body|div|p|br|span|table|a|img|ul|ol|li|h[1-6]|b|i|strong|em|blockquote|style|script)[\s>/]`)

// cutMarkers are applied once each; the earliest match truncates the body
// from that point on. They cover signature blocks and quoted reply or
// forward chains.
var cutMarkers = []*regexp.Regexp{
	// RFC 3676 signature delimiter
	regexp.MustCompile(`(?m)^-- ?$`),
	regexp.MustCompile(`(?m)^__+\s*$`),
	regexp.MustCompile(`(?mi)^sent from my \w+`),
	regexp.MustCompile(`(?mi)^get outlook for (ios|android)`),
	// Reply chains
	regexp.MustCompile(`(?mi)^on .{1,120} wrote:\s*$`),
	regexp.MustCompile(`(?mi)^-{2,}\s*original message\s*-{2,}`),
	regexp.MustCompile(`(?mi)^-{2,}\s*forwarded message\s*-{2,}`),
	regexp.MustCompile(`(?mi)^begin forwarded message:`),
	regexp.MustCompile(`(?mi)^from:\s.+\nsent:\s.+\nto:\s.+`),
	// Sign-offs followed by nothing but a name
	regexp.MustCompile(`(?mi)^(best regards|kind regards|regards|cheers|thanks|thank you|sincerely|best),?\s*\n\S.{0,60}\s*\z`),
}

// quotedLinePattern removes "> quoted" lines left inline by clients that
// interleave replies.
var quotedLinePattern = regexp.MustCompile(`(?m)^\s*>.*$`)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// Cleaner normalizes raw email content into model-ready plain text.
//
// Cleaning is purely functional: the same input always yields the same
// output, and cleaning already-clean text is a no-op.
type Cleaner struct {
	// MaxLength caps the combined subject+body length in runes. The subject
	// is always preserved; the body tail is truncated first.
	MaxLength int

	// MinLength is the threshold below which cleaned content is considered
	// insufficient for enrichment or indexing.
	MinLength int
}

// NewCleaner creates a Cleaner with the given length bounds.
func NewCleaner(maxLength, minLength int) *Cleaner {
	return &Cleaner{MaxLength: maxLength, MinLength: minLength}
}

// Clean converts the email to compact plain text: HTML markup is stripped
// (link text preserved), signature blocks and quoted chains removed, blank
// runs collapsed, and the result truncated to MaxLength.
//
// Returns "" for a nil or empty email.
func (c *Cleaner) Clean(email *Email) string {
	if email == nil {
		return ""
	}

	subject := strings.TrimSpace(email.Subject)
	body := c.CleanBody(email.Body)

	combined := subject
	if body != "" {
		if combined != "" {
			combined += "\n\n"
		}
		combined += body
	}
	if combined == "" {
		return ""
	}

	return c.truncate(subject, combined)
}

// CleanBody normalizes a body without a subject. Exposed for query-side
// cleaning where only free text is available.
func (c *Cleaner) CleanBody(body string) string {
	text := body
	if htmlTagPattern.MatchString(text) {
		converted, err := html2text.FromString(text, html2text.Options{TextOnly: true})
		if err == nil {
			text = converted
		}
		// On conversion failure the raw text is cleaned as-is.
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	// Each marker applies once; the earliest match wins regardless of order.
	cut := len(text)
	for _, marker := range cutMarkers {
		if loc := marker.FindStringIndex(text); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	text = text[:cut]

	text = quotedLinePattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Sufficient reports whether cleaned content meets the minimum length for
// processing. Callers must short-circuit to defaults when it does not,
// rather than calling the completion or vector services.
func (c *Cleaner) Sufficient(cleaned string) bool {
	return len([]rune(cleaned)) >= c.MinLength
}

// truncate caps combined at MaxLength runes, always keeping the subject.
func (c *Cleaner) truncate(subject, combined string) string {
	if c.MaxLength <= 0 {
		return combined
	}
	runes := []rune(combined)
	if len(runes) <= c.MaxLength {
		return combined
	}

	subjRunes := []rune(subject)
	if len(subjRunes) >= c.MaxLength {
		return string(subjRunes[:c.MaxLength])
	}

	return strings.TrimSpace(string(runes[:c.MaxLength]))
}
