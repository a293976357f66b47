package protocol

import "time"

// OutcomeKind classifies the result of a single invocation attempt.
type OutcomeKind string

const (
	OutcomeSuccess               OutcomeKind = "success"
	OutcomeTransient             OutcomeKind = "transient"              // Throttling, network, 5xx
	OutcomeParameterIncompatible OutcomeKind = "parameter_incompatible" // Vendor rejected an extra field
	OutcomeProfileRequired       OutcomeKind = "profile_required"       // Model needs profile-based access
	OutcomeContentIncompatible   OutcomeKind = "content_incompatible"   // Model rejects the content type
	OutcomeFatal                 OutcomeKind = "fatal"
)

// RequestAttempt is an immutable record of one invocation try.
type RequestAttempt struct {
	ID           string         `json:"id"`
	Number       int            `json:"number"` // 1-based position in the request's history
	Model        string         `json:"model"`
	Region       string         `json:"region"`
	AccessMethod AccessMethod   `json:"access_method"`
	Identifier   string         `json:"identifier"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Outcome      OutcomeKind    `json:"outcome"`
	Message      string         `json:"message,omitempty"`
	Fields       []string       `json:"fields,omitempty"` // Offending fields for parameter outcomes
	ConsumedSlot bool           `json:"consumed_slot"`
	StartedAt    time.Time      `json:"started_at"`
	DurationMs   int64          `json:"duration_ms"`
}

// Succeeded reports whether the attempt produced a response.
func (a RequestAttempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}
