package tracker

import (
	"time"

	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// AccessKey identifies a model in a region.
type AccessKey struct {
	Model  string
	Region string
}

// AccessPreference is the access method learned for an AccessKey.
type AccessPreference struct {
	Method           protocol.AccessMethod
	LearnedFromError bool // Set when direct access was rejected before this method worked
	UpdatedAt        time.Time
}

// RequiresProfile reports whether the model was observed to reject direct access.
func (p AccessPreference) RequiresProfile() bool {
	return p.LearnedFromError && p.Method.IsProfile()
}

// AccessStats extends Stats with per-method counts.
type AccessStats struct {
	Stats
	ByMethod         map[protocol.AccessMethod]int `json:"by_method"`
	LearnedFromError int                           `json:"learned_from_error"`
}

// AccessTracker records the preferred access method per (model, region).
type AccessTracker struct {
	t   *table[AccessKey, AccessPreference]
	now func() time.Time
}

// NewAccessTracker creates a tracker holding at most capacity entries.
func NewAccessTracker(capacity int) *AccessTracker {
	return &AccessTracker{
		t:   newTable[AccessKey, AccessPreference](capacity),
		now: time.Now,
	}
}

// RecordSuccess stores the method that just worked.
func (a *AccessTracker) RecordSuccess(model, region string, method protocol.AccessMethod, learnedFromError bool) {
	at := a.now()
	a.t.put(AccessKey{Model: model, Region: region}, AccessPreference{
		Method:           method,
		LearnedFromError: learnedFromError,
		UpdatedAt:        at,
	}, at)
}

// RecordRequirement stores that the model demands profile access, preferring
// the given profile method until a success says otherwise.
func (a *AccessTracker) RecordRequirement(model, region string, profile protocol.AccessMethod) {
	if !profile.IsProfile() {
		profile = protocol.AccessRegionalProfile
	}
	at := a.now()
	a.t.put(AccessKey{Model: model, Region: region}, AccessPreference{
		Method:           profile,
		LearnedFromError: true,
		UpdatedAt:        at,
	}, at)
}

// Query returns the learned preference, if any.
func (a *AccessTracker) Query(model, region string) (AccessPreference, bool) {
	pref, _, ok := a.t.get(AccessKey{Model: model, Region: region})
	return pref, ok
}

// Statistics returns entry and per-method counts.
func (a *AccessTracker) Statistics() AccessStats {
	s := AccessStats{Stats: a.t.snapshot(), ByMethod: make(map[protocol.AccessMethod]int)}
	a.t.each(func(_ AccessKey, p AccessPreference) {
		s.ByMethod[p.Method]++
		if p.LearnedFromError {
			s.LearnedFromError++
		}
	})
	return s
}

// Reset drops every entry.
func (a *AccessTracker) Reset() {
	a.t.reset()
}
