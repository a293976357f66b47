// Package classifier provides rule-based outcome pattern matching.
package classifier

import (
	"regexp"
	"strings"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// OutcomePattern maps an error message shape to an outcome.
type OutcomePattern struct {
	ID       string
	Kind     protocol.OutcomeKind
	Keywords []string // Any one must appear (case-insensitive)
	Regex    *regexp.Regexp
}

// Matches checks if the pattern matches the given message.
func (p *OutcomePattern) Matches(message string) bool {
	msg := strings.ToLower(message)

	if len(p.Keywords) > 0 {
		matched := false
		for _, kw := range p.Keywords {
			if strings.Contains(msg, strings.ToLower(kw)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if p.Regex != nil {
		return p.Regex.MatchString(message)
	}
	return true
}

// defaultPatterns returns the default outcome patterns. Order matters:
// the first match wins.
func defaultPatterns() []*OutcomePattern {
	return []*OutcomePattern{
		// ============================================================
		// PROFILE REQUIREMENT
		// ============================================================
		{
			ID:       "profile_on_demand_unsupported",
			Kind:     protocol.OutcomeProfileRequired,
			Keywords: []string{"on-demand throughput"},
			Regex:    regexp.MustCompile(`(?i)on-demand throughput (isn.t|is not) supported|doesn.t support on-demand throughput`),
		},
		{
			ID:       "profile_retry_with_profile",
			Kind:     protocol.OutcomeProfileRequired,
			Keywords: []string{"inference profile"},
			Regex:    regexp.MustCompile(`(?i)(retry|use).*(id|arn) of an inference profile`),
		},

		// ============================================================
		// PARAMETER INCOMPATIBILITY
		// ============================================================
		{
			ID:       "param_extraneous_key",
			Kind:     protocol.OutcomeParameterIncompatible,
			Keywords: []string{"extraneous key"},
		},
		{
			ID:       "param_extra_inputs",
			Kind:     protocol.OutcomeParameterIncompatible,
			Keywords: []string{"extra inputs are not permitted"},
		},
		{
			ID:       "param_invalid_beta",
			Kind:     protocol.OutcomeParameterIncompatible,
			Keywords: []string{"beta flag", "anthropic_beta"},
			Regex:    regexp.MustCompile(`(?i)(invalid|unsupported|unknown).*beta|beta.*(not supported|invalid)`),
		},
		{
			ID:       "param_unsupported_field",
			Kind:     protocol.OutcomeParameterIncompatible,
			Keywords: []string{"parameter", "field"},
			Regex:    regexp.MustCompile(`(?i)(unsupported|unknown|unrecognized|not permitted|not allowed).*(parameter|field)|(parameter|field).*(not supported|not permitted|not allowed)`),
		},

		// ============================================================
		// CONTENT INCOMPATIBILITY
		// ============================================================
		{
			ID:       "content_block_unsupported",
			Kind:     protocol.OutcomeContentIncompatible,
			Keywords: []string{"content block", "content type", "modality", "modalities"},
			Regex:    regexp.MustCompile(`(?i)(doesn.t|does not|not) support|unsupported`),
		},
		{
			ID:       "content_media_unsupported",
			Kind:     protocol.OutcomeContentIncompatible,
			Keywords: []string{"image", "video", "document", "audio"},
			Regex:    regexp.MustCompile(`(?i)(doesn.t|does not) support (the )?(image|video|document|audio)|(image|video|document|audio)s? (is|are) not supported`),
		},

		// ============================================================
		// TRANSIENT
		// ============================================================
		{
			ID:       "transient_throttling",
			Kind:     protocol.OutcomeTransient,
			Keywords: []string{"throttl", "too many requests", "rate exceeded", "rate limit"},
		},
		{
			ID:       "transient_unavailable",
			Kind:     protocol.OutcomeTransient,
			Keywords: []string{"service unavailable", "serviceunavailable", "temporarily unavailable", "not ready", "internal server error", "timed out", "timeout", "connection reset", "connection refused", "eof"},
		},
	}
}
