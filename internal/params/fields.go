package params

import (
	"sort"
	"strings"
)

// Well-known extension keys.
const (
	KeyAnthropicBeta = "anthropic_beta"
	KeyThinking      = "thinking"
)

// ExtendedContextBeta is the beta marker enabling the 1M-token context window.
const ExtendedContextBeta = "context-1m-2025-08-07"

// Field is one extension field contributed to a request. Each known shape
// has its own merge rule.
type Field interface {
	Key() string
	// MergeInto writes the field into dst, which already holds the
	// contributions of higher-priority sources.
	MergeInto(dst map[string]any)
}

// BetaList is a list-valued beta marker field. Lists from several sources
// are unioned with duplicates removed, higher-priority entries first.
type BetaList []string

// Key returns anthropic_beta.
func (BetaList) Key() string { return KeyAnthropicBeta }

// MergeInto unions b into the existing list.
func (b BetaList) MergeInto(dst map[string]any) {
	existing, ok := dst[KeyAnthropicBeta]
	if !ok {
		dst[KeyAnthropicBeta] = dedupe(b)
		return
	}
	current, ok := stringList(existing)
	if !ok {
		// Unrecognized shape from the caller; it has priority.
		return
	}
	dst[KeyAnthropicBeta] = dedupe(append(current, b...))
}

// Thinking enables extended reasoning with a token budget.
type Thinking struct {
	BudgetTokens int
}

// Key returns thinking.
func (Thinking) Key() string { return KeyThinking }

// MergeInto sets the thinking block unless a higher-priority source did.
func (t Thinking) MergeInto(dst map[string]any) {
	if _, ok := dst[KeyThinking]; ok {
		return
	}
	dst[KeyThinking] = map[string]any{
		"type":          "enabled",
		"budget_tokens": t.BudgetTokens,
	}
}

// Raw is a caller-supplied field passed through as-is.
type Raw struct {
	Name  string
	Value any
}

// Key returns the field name.
func (r Raw) Key() string { return r.Name }

// MergeInto sets the value unless a higher-priority source did.
func (r Raw) MergeInto(dst map[string]any) {
	if _, ok := dst[r.Name]; ok {
		return
	}
	dst[r.Name] = r.Value
}

// stringList accepts the list shapes a decoded or hand-built map may hold.
func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		return []string{list}, true
	}
	return nil, false
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Strip returns a copy of fields without the named keys. A dotted path
// such as "thinking.budget_tokens" removes its top-level key.
func Strip(fields map[string]any, names []string) map[string]any {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		top, _, _ := strings.Cut(n, ".")
		drop[top] = true
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if !drop[k] {
			out[k] = v
		}
	}
	return out
}

// Present returns the names whose top-level key is set in fields, in order
// and without duplicates.
func Present(fields map[string]any, names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		top, _, _ := strings.Cut(n, ".")
		if _, ok := fields[top]; !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Keys returns the top-level keys of fields, sorted.
func Keys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
