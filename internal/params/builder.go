// Package params builds the extension fields sent alongside a request.
//
// Three sources contribute, highest priority first: the caller's raw
// ExtraFields map, structured configuration (Thinking, Betas), and boolean
// convenience flags (ExtendedContext). A higher source wins for a given key,
// except anthropic_beta, whose lists are unioned.
package params

import (
	"strings"

	"github.com/rs/zerolog"
)

// DefaultExtendedContextModels lists the models that accept the extended
// context beta, by catalog name or raw model id.
var DefaultExtendedContextModels = []string{
	"Claude Sonnet 4",
	"Claude Sonnet 4.5",
	"anthropic.claude-sonnet-4-20250514-v1:0",
	"anthropic.claude-sonnet-4-5-20250929-v1:0",
}

// Config is the per-request parameter input.
type Config struct {
	// ExtraFields is passed through as given and has the highest priority.
	ExtraFields map[string]any

	// Thinking enables extended reasoning.
	Thinking *Thinking

	// Betas are additional beta markers.
	Betas []string

	// ExtendedContext requests the 1M-token context window on models that
	// support it; ignored with a warning elsewhere.
	ExtendedContext bool
}

// IsZero reports whether the config contributes nothing.
func (c Config) IsZero() bool {
	return len(c.ExtraFields) == 0 && c.Thinking == nil && len(c.Betas) == 0 && !c.ExtendedContext
}

// Builder merges extension fields. It is safe for concurrent use.
type Builder struct {
	extendedContext map[string]bool
	log             zerolog.Logger
}

// NewBuilder creates a builder. An empty allow-list uses
// DefaultExtendedContextModels.
func NewBuilder(extendedContextModels []string, log zerolog.Logger) *Builder {
	if len(extendedContextModels) == 0 {
		extendedContextModels = DefaultExtendedContextModels
	}
	allowed := make(map[string]bool, len(extendedContextModels))
	for _, m := range extendedContextModels {
		allowed[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return &Builder{extendedContext: allowed, log: log}
}

// SupportsExtendedContext reports whether any of the model's names is allow-listed.
func (b *Builder) SupportsExtendedContext(names ...string) bool {
	for _, n := range names {
		if b.extendedContext[strings.ToLower(strings.TrimSpace(n))] {
			return true
		}
	}
	return false
}

// Build returns the merged fields for model. modelNames are the catalog name
// followed by any aliases such as the raw model id. The result is nil when
// no source contributes.
func (b *Builder) Build(cfg Config, modelNames ...string) map[string]any {
	if cfg.IsZero() {
		return nil
	}

	out := make(map[string]any, len(cfg.ExtraFields)+2)
	for _, f := range b.Fields(cfg, modelNames...) {
		f.MergeInto(out)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Fields returns the typed contributions in merge order, highest priority first.
func (b *Builder) Fields(cfg Config, modelNames ...string) []Field {
	var fields []Field

	// 1. Raw caller fields
	for _, k := range Keys(cfg.ExtraFields) {
		fields = append(fields, Raw{Name: k, Value: cfg.ExtraFields[k]})
	}

	// 2. Structured configuration
	if cfg.Thinking != nil {
		fields = append(fields, *cfg.Thinking)
	}
	if len(cfg.Betas) > 0 {
		fields = append(fields, BetaList(cfg.Betas))
	}

	// 3. Convenience flags
	if cfg.ExtendedContext {
		if b.SupportsExtendedContext(modelNames...) {
			fields = append(fields, BetaList{ExtendedContextBeta})
		} else {
			model := ""
			if len(modelNames) > 0 {
				model = modelNames[0]
			}
			b.log.Warn().Str("model", model).Msg("extended context not supported by model; flag ignored")
		}
	}
	return fields
}
