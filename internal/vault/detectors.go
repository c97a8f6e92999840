package vault

import (
	"math"
	"regexp"
	"strings"
)

// detector is one ordered detection pass. Credential-context detectors
// run before the generic shape detectors so a value like
// "password: deadbeef..." is typed PASSWORD, not HEX.
type detector struct {
	typ   string
	re    *regexp.Regexp
	group int                // submatch index holding the secret value
	check func(string) bool  // optional extra gate on the value
}

var defaultDetectors = []detector{
	// PEM-armored private keys. The whole block is the secret.
	{
		typ:   "PRIVATE_KEY",
		re:    regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`),
		group: 0,
	},

	// key=value / key: value credential assignments.
	{
		typ:   "PASSWORD",
		re:    regexp.MustCompile(`(?i)\b[A-Za-z0-9_-]*(?:password|passwd|pwd)\s*[=:]\s*["']?([^\s"';]+)`),
		group: 1,
	},
	{
		typ:   "PASSWORD",
		re:    regexp.MustCompile(`[A-Za-z][A-Za-z0-9+.-]*://[^\s/:@"']+:([^\s@/"']{4,})@`),
		group: 1,
	},
	{
		typ:   "TOKEN",
		re:    regexp.MustCompile(`(?i)\b[A-Za-z0-9_-]*token\s*[=:]\s*["']?([^\s"';]+)`),
		group: 1,
	},
	{
		typ:   "API_KEY",
		re:    regexp.MustCompile(`(?i)\b[A-Za-z0-9_-]*(?:api[_-]?key|apikey)\s*[=:]\s*["']?([^\s"';]+)`),
		group: 1,
	},
	{
		typ:   "SECRET",
		re:    regexp.MustCompile(`(?i)\b[A-Za-z0-9_-]*secret[A-Za-z0-9_-]*\s*[=:]\s*["']?([^\s"';]+)`),
		group: 1,
	},
	{
		typ:   "TOKEN",
		re:    regexp.MustCompile(`(?i)\b(?:bearer|basic)\s+([A-Za-z0-9._~+/=-]{8,})`),
		group: 1,
	},

	// Well-known credential shapes, recognizable without context.
	{
		typ:   "API_KEY",
		re:    regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),
		group: 0,
	},
	{
		typ:   "API_KEY",
		re:    regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`),
		group: 0,
	},
	{
		typ:   "TOKEN",
		re:    regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,}|xox[baprs]-[A-Za-z0-9-]{10,})\b`),
		group: 0,
	},

	// Generic shapes, entropy-gated. These run last so contextual
	// detectors have already claimed their values.
	{
		typ:   "HEX",
		re:    regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
		group: 0,
		check: looksLikeHexSecret,
	},
	{
		typ:   "B64",
		re:    regexp.MustCompile(`[A-Za-z0-9+=_-]{20,}`),
		group: 0,
		check: looksLikeEncodedSecret,
	},
}

// apply rewrites text, replacing each match's value with its token.
func (d detector) apply(text string, m *Mapping) string {
	matches := d.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	tokens := tokenRe.FindAllStringIndex(text, -1)

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, match := range matches {
		start, end := match[2*d.group], match[2*d.group+1]
		if start < 0 || start < last {
			continue
		}
		value := text[start:end]
		if !redactable(value) || overlapsAny(start, end, tokens) {
			continue
		}
		if d.check != nil && !d.check(value) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(m.tokenFor(d.typ, value))
		last = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// redactable filters out values that are not worth masking: too short,
// already a placeholder, or an obvious non-secret.
func redactable(value string) bool {
	if len(value) < 4 {
		return false
	}
	if strings.Contains(value, "{{") || strings.Contains(value, "}}") {
		return false
	}
	switch strings.ToLower(value) {
	case "true", "false", "null", "none", "nil", "redacted":
		return false
	}
	if strings.Trim(value, "*") == "" {
		return false
	}
	return true
}

// overlapsAny reports whether [start,end) intersects any existing
// placeholder span, so lookalike tokens are never re-redacted.
func overlapsAny(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// looksLikeHexSecret requires a digit/letter mix so version hashes pass
// but long decimal numbers do not.
func looksLikeHexSecret(s string) bool {
	var hasDigit, hasAlpha bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F'):
			hasAlpha = true
		}
	}
	return hasDigit && hasAlpha
}

// looksLikeEncodedSecret gates the generic base64-ish detector on
// character-class mix and Shannon entropy, cutting false positives on
// ordinary words and paths.
func looksLikeEncodedSecret(s string) bool {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit} {
		if ok {
			classes++
		}
	}
	if classes < 2 || !hasDigit {
		return false
	}
	return shannonEntropy(s) >= 3.5
}

// shannonEntropy returns bits per character.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	n := float64(len([]rune(s)))
	var entropy float64
	for _, c := range freq {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
