// Package access chooses the identifier used to invoke a model in a region.
package access

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Bestehorn/LLMManager-sub002/internal/catalog"
	"github.com/Bestehorn/LLMManager-sub002/internal/tracker"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// ErrNoAccessMethod is returned when a region offers no usable method.
var ErrNoAccessMethod = errors.New("no access method available")

// Selection is the outcome of Select.
type Selection struct {
	Identifier string
	Method     protocol.AccessMethod
	Learned    bool // Chosen from a learned preference rather than the default order
}

// Selector picks access methods. The zero value is not usable; use NewSelector.
type Selector struct {
	order []protocol.AccessMethod
	log   zerolog.Logger
}

// NewSelector returns a selector using the default order
// direct, regional profile, global profile.
func NewSelector(log zerolog.Logger) *Selector {
	return &Selector{order: protocol.DefaultAccessOrder, log: log}
}

// Select returns the identifier and method to use. A learned preference wins
// when the catalog still offers that method; otherwise the default order
// applies, with profiles first if direct access was learned to be rejected.
func (s *Selector) Select(info catalog.ModelAccessInfo, pref *tracker.AccessPreference) (Selection, error) {
	if pref != nil {
		if id, ok := info.Identifier(pref.Method); ok {
			return Selection{Identifier: id, Method: pref.Method, Learned: true}, nil
		}
		s.log.Debug().
			Str("region", info.Region).
			Str("learned", string(pref.Method)).
			Msg("learned access method no longer offered; using default order")
	}

	order := s.order
	if pref != nil && pref.RequiresProfile() {
		order = profilesFirst(order)
	}
	for _, m := range order {
		if id, ok := info.Identifier(m); ok {
			return Selection{Identifier: id, Method: m}, nil
		}
	}
	return Selection{}, fmt.Errorf("%w in %s", ErrNoAccessMethod, info.Region)
}

// FallbackMethods returns the methods still worth trying, in preference
// order, excluding those that already failed.
func (s *Selector) FallbackMethods(info catalog.ModelAccessInfo, failed ...protocol.AccessMethod) []protocol.AccessMethod {
	var out []protocol.AccessMethod
	for _, m := range s.order {
		if !info.Offers(m) || contains(failed, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// NextProfile returns the first profile method not yet tried. It is the
// reaction to a profile-required rejection.
func (s *Selector) NextProfile(info catalog.ModelAccessInfo, failed ...protocol.AccessMethod) (Selection, bool) {
	for _, m := range s.FallbackMethods(info, failed...) {
		if !m.IsProfile() {
			continue
		}
		id, _ := info.Identifier(m)
		return Selection{Identifier: id, Method: m}, true
	}
	return Selection{}, false
}

func profilesFirst(order []protocol.AccessMethod) []protocol.AccessMethod {
	out := make([]protocol.AccessMethod, 0, len(order))
	for _, m := range order {
		if m.IsProfile() {
			out = append(out, m)
		}
	}
	for _, m := range order {
		if !m.IsProfile() {
			out = append(out, m)
		}
	}
	return out
}

func contains(methods []protocol.AccessMethod, m protocol.AccessMethod) bool {
	for _, x := range methods {
		if x == m {
			return true
		}
	}
	return false
}
