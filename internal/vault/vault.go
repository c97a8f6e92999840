// Package vault provides reversible secret redaction. Text is masked
// before it leaves the process and restored only at the point of real
// execution, so credential values never reach the Oracle, the logs, or
// the audit trail.
package vault

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// tokenRe matches placeholder tokens of the form {{TYPE_N}}.
var tokenRe = regexp.MustCompile(`\{\{[A-Z][A-Z0-9_]*_[0-9]+\}\}`)

// Entry describes one redacted secret. The original value is held
// privately by the mapping and is never part of the exported surface.
type Entry struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// Mapping resolves placeholder tokens back to their original values.
// One mapping belongs to one vault session; it is never shared between
// runs and must never be persisted.
type Mapping struct {
	mu      sync.Mutex
	entries []Entry
	byValue map[string]string
	byToken map[string]string
	counts  map[string]int
}

func newMapping() *Mapping {
	return &Mapping{
		byValue: make(map[string]string),
		byToken: make(map[string]string),
		counts:  make(map[string]int),
	}
}

// Len returns the number of distinct secrets in the mapping.
func (m *Mapping) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns the redacted entries in detection order. Tokens and
// types only; values stay inside the mapping.
func (m *Mapping) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Resolve returns the original value for a token produced by this
// mapping's vault session.
func (m *Mapping) Resolve(token string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byToken[token]
	return v, ok
}

// Mask replaces every known secret value occurring in text with its
// token. Command output passes through here so values restored for
// execution can never travel back out through results, logs, or audit
// records.
func (m *Mapping) Mask(text string) string {
	if text == "" {
		return text
	}
	m.mu.Lock()
	values := make([]string, 0, len(m.byValue))
	for v := range m.byValue {
		values = append(values, v)
	}
	// Longer values first so a secret containing another secret as a
	// substring masks cleanly.
	sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })
	pairs := make([]string, 0, len(values)*2)
	for _, v := range values {
		pairs = append(pairs, v, m.byValue[v])
	}
	m.mu.Unlock()
	if len(pairs) == 0 {
		return text
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// tokenFor returns the token for a value, allocating one on first sight.
// Identical values always collapse to a single token; distinct values
// never share one.
func (m *Mapping) tokenFor(typ, value string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok := m.byValue[value]; ok {
		return tok
	}
	m.counts[typ]++
	tok := fmt.Sprintf("{{%s_%d}}", typ, m.counts[typ])
	m.byValue[value] = tok
	m.byToken[tok] = value
	m.entries = append(m.entries, Entry{Token: tok, Type: typ})
	return tok
}

// Vault is one redaction session. A fresh vault is created per run; its
// mapping accumulates across Redact calls so a secret seen twice keeps
// the same token for the whole session.
type Vault struct {
	detectors []detector
	mapping   *Mapping
}

// New creates a vault with the default detector set.
func New() *Vault {
	return &Vault{
		detectors: defaultDetectors,
		mapping:   newMapping(),
	}
}

// Mapping returns the session mapping.
func (v *Vault) Mapping() *Mapping {
	return v.mapping
}

// Redact masks every detected secret in text and returns the safe text
// together with the session mapping that resolves it. Empty or
// secret-free input comes back unchanged.
func (v *Vault) Redact(text string) (string, *Mapping) {
	if text == "" {
		return text, v.mapping
	}
	out := text
	for _, d := range v.detectors {
		out = d.apply(out, v.mapping)
	}
	return out, v.mapping
}

// Substitute restores tokens in text using the session mapping.
func (v *Vault) Substitute(text string) (string, int) {
	return Substitute(text, v.mapping)
}

// Substitute replaces every token that the mapping can resolve with its
// original value. Tokens the mapping does not know are left intact and
// counted, never dropped. Once all tokens resolve the result is stable
// under repeated substitution.
func Substitute(text string, m *Mapping) (restored string, unresolved int) {
	if text == "" {
		return text, 0
	}
	if m == nil {
		return text, len(tokenRe.FindAllStringIndex(text, -1))
	}

	locs := tokenRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		token := text[loc[0]:loc[1]]
		if value, ok := m.Resolve(token); ok {
			b.WriteString(value)
		} else {
			b.WriteString(token)
			unresolved++
		}
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), unresolved
}
