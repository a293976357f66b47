package retry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/internal/params"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Candidate is one (model, region) pair to try.
type Candidate struct {
	Model  string `json:"model"`
	Region string `json:"region"`
}

func (c Candidate) String() string {
	return c.Model + "@" + c.Region
}

// Request is one logical "send this" operation.
type Request struct {
	Candidates []Candidate // Tried in order
	Messages   []model.Message
	System     []string
	Inference  model.InferenceConfig
	Params     params.Config
}

// Result is a successful request.
type Result struct {
	RequestID    string                    `json:"request_id"`
	Response     *model.Response           `json:"response"`
	Model        string                    `json:"model"`
	Region       string                    `json:"region"`
	AccessMethod protocol.AccessMethod     `json:"access_method"`
	Identifier   string                    `json:"identifier"`
	Parameters   map[string]any            `json:"parameters,omitempty"`
	Attempts     []protocol.RequestAttempt `json:"attempts"`
	Warnings     []string                  `json:"warnings,omitempty"`
	SlotsUsed    int                       `json:"slots_used"`
	Elapsed      time.Duration             `json:"elapsed"`
}

// Text returns the response text.
func (r *Result) Text() string {
	if r.Response == nil {
		return ""
	}
	return r.Response.Text()
}

// RetryExhaustedError is returned when no candidate succeeded. It matches
// errors.ErrRetryExhausted and unwraps to every observed error, including
// ctx.Err() when the request was cancelled.
type RetryExhaustedError struct {
	RequestID string
	Attempts  []protocol.RequestAttempt
	Errors    []error
	Warnings  []string

	// OffendingParameters is set when every failure was a parameter rejection.
	OffendingParameters []string
	// ProfileRequiredModels is set when every failure was a profile requirement.
	ProfileRequiredModels []string

	// Err is the cancellation cause, if any.
	Err error
}

func (e *RetryExhaustedError) Error() string {
	var sb strings.Builder
	sb.WriteString(apperrors.ErrRetryExhausted.Error())
	fmt.Fprintf(&sb, " after %d attempts", len(e.Attempts))
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if len(e.OffendingParameters) > 0 {
		fmt.Fprintf(&sb, "; incompatible parameters: %s", strings.Join(e.OffendingParameters, ", "))
	}
	if len(e.ProfileRequiredModels) > 0 {
		fmt.Fprintf(&sb, "; models requiring an inference profile: %s", strings.Join(e.ProfileRequiredModels, ", "))
	}
	if n := len(e.Errors); n > 0 {
		fmt.Fprintf(&sb, "; last error: %v", e.Errors[n-1])
	}
	return sb.String()
}

// Is matches errors.ErrRetryExhausted.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == apperrors.ErrRetryExhausted
}

// Unwrap exposes the observed errors to errors.Is and errors.As.
func (e *RetryExhaustedError) Unwrap() []error {
	errs := append([]error(nil), e.Errors...)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// summarize fills OffendingParameters and ProfileRequiredModels when every
// failure shares that class. skippedFields are fields of candidates skipped
// as known-incompatible; they count as parameter failures.
func (e *RetryExhaustedError) summarize(skippedFields []string, skipped int) {
	var (
		paramFailures, profileFailures, otherFailures int
		fields                                        = make(map[string]bool)
		models                                        = make(map[string]bool)
	)
	for _, f := range skippedFields {
		fields[f] = true
	}
	paramFailures += skipped

	for _, a := range e.Attempts {
		switch a.Outcome {
		case protocol.OutcomeSuccess:
		case protocol.OutcomeParameterIncompatible:
			paramFailures++
			for _, f := range a.Fields {
				fields[f] = true
			}
		case protocol.OutcomeProfileRequired:
			profileFailures++
			models[a.Model] = true
		default:
			otherFailures++
		}
	}

	if otherFailures > 0 || paramFailures+profileFailures == 0 {
		return
	}
	if paramFailures > 0 {
		e.OffendingParameters = sortedKeys(fields)
	}
	if profileFailures > 0 {
		e.ProfileRequiredModels = sortedKeys(models)
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
