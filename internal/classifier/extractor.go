// Package classifier provides offending-field extraction from error messages.
package classifier

import (
	"regexp"
	"strings"
)

var (
	// extraneous key [anthropic_beta] is not permitted
	extraneousKeyRegex = regexp.MustCompile(`(?i)extraneous key \[([\w.\-]+)\]`)

	// anthropic_beta: Extra inputs are not permitted
	extraInputsRegex = regexp.MustCompile(`(?i)([\w.\-]+):\s*extra inputs are not permitted`)

	// unsupported parameter: top_k / unknown field 'top_k'
	namedFieldRegex = regexp.MustCompile(`(?i)(?:unsupported|unknown|unrecognized|invalid)\s+(?:parameter|field|key)s?[:\s]+['"\x60]?([\w.\-]+)`)

	betaRegex = regexp.MustCompile(`(?i)beta`)
)

// ExtractFields returns the request fields named in a parameter rejection.
// The result is empty when the message names none.
func ExtractFields(message string) []string {
	seen := make(map[string]bool)
	var fields []string
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			return
		}
		seen[f] = true
		fields = append(fields, f)
	}

	for _, re := range []*regexp.Regexp{extraneousKeyRegex, extraInputsRegex, namedFieldRegex} {
		for _, match := range re.FindAllStringSubmatch(message, -1) {
			add(match[1])
		}
	}

	if len(fields) == 0 && betaRegex.MatchString(message) {
		add("anthropic_beta")
	}
	return fields
}
