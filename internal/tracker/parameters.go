package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ParameterKey identifies one extra-parameter set sent to a model in a region.
type ParameterKey struct {
	Model  string
	Region string
	Hash   string
}

// ParameterRecord is the last observed outcome for a ParameterKey.
type ParameterRecord struct {
	Compatible bool
	Fields     []string // Fields the vendor rejected, when known
	UpdatedAt  time.Time
}

// ParameterStats extends Stats with per-outcome counts.
type ParameterStats struct {
	Stats
	Compatible   int `json:"compatible"`
	Incompatible int `json:"incompatible"`
}

// ParameterTracker records which extra-parameter sets each (model, region) accepts.
// Incompatible entries never expire; they leave only through LRU eviction or Reset.
type ParameterTracker struct {
	t   *table[ParameterKey, ParameterRecord]
	now func() time.Time
}

// NewParameterTracker creates a tracker holding at most capacity entries.
func NewParameterTracker(capacity int) *ParameterTracker {
	return &ParameterTracker{
		t:   newTable[ParameterKey, ParameterRecord](capacity),
		now: time.Now,
	}
}

// HashParameters returns a stable hash of a parameter payload. Maps are
// serialized with sorted keys, so structurally identical payloads hash equally
// regardless of insertion order. An empty payload hashes to "".
func HashParameters(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		// Non-JSON values still need a deterministic key.
		data = []byte(fmt.Sprintf("%#v", params))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// Key builds the tracker key for a payload.
func (p *ParameterTracker) Key(model, region string, params map[string]any) ParameterKey {
	return ParameterKey{Model: model, Region: region, Hash: HashParameters(params)}
}

// RecordSuccess marks the payload as accepted by model in region.
func (p *ParameterTracker) RecordSuccess(model, region string, params map[string]any) {
	at := p.now()
	p.t.put(p.Key(model, region, params), ParameterRecord{Compatible: true, UpdatedAt: at}, at)
}

// RecordFailure marks the payload as rejected, naming the offending fields if known.
func (p *ParameterTracker) RecordFailure(model, region string, params map[string]any, fields []string) {
	at := p.now()
	record := ParameterRecord{
		Compatible: false,
		Fields:     append([]string(nil), fields...),
		UpdatedAt:  at,
	}
	p.t.put(p.Key(model, region, params), record, at)
}

// Query returns the last recorded outcome for the payload.
func (p *ParameterTracker) Query(model, region string, params map[string]any) (ParameterRecord, bool) {
	record, _, ok := p.t.get(p.Key(model, region, params))
	return record, ok
}

// IsKnownIncompatible reports whether the payload was last recorded as rejected.
func (p *ParameterTracker) IsKnownIncompatible(model, region string, params map[string]any) bool {
	if len(params) == 0 {
		return false
	}
	record, ok := p.Query(model, region, params)
	return ok && !record.Compatible
}

// Statistics returns entry and outcome counts.
func (p *ParameterTracker) Statistics() ParameterStats {
	s := ParameterStats{Stats: p.t.snapshot()}
	p.t.each(func(_ ParameterKey, r ParameterRecord) {
		if r.Compatible {
			s.Compatible++
		} else {
			s.Incompatible++
		}
	})
	return s
}

// Reset drops every entry.
func (p *ParameterTracker) Reset() {
	p.t.reset()
}
