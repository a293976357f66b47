// Package retry runs one logical request across candidate (model, region)
// pairs, reacting to each classified failure and feeding what it learns back
// into the shared compatibility trackers.
//
// Attempt budget: MaxAttempts counts slots. The first invocation of a
// candidate and every transient retry take a slot. Retries that strip
// rejected parameters or switch to an inference profile are recorded as
// attempts but take no slot.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Bestehorn/LLMManager-sub002/internal/access"
	"github.com/Bestehorn/LLMManager-sub002/internal/catalog"
	"github.com/Bestehorn/LLMManager-sub002/internal/classifier"
	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/internal/model"
	"github.com/Bestehorn/LLMManager-sub002/internal/params"
	"github.com/Bestehorn/LLMManager-sub002/internal/stats"
	"github.com/Bestehorn/LLMManager-sub002/internal/tracker"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Defaults.
const (
	DefaultMaxAttempts      = 3
	DefaultTransientRetries = 2
)

// Config configures an Engine. Invoker, Parameters and Access are required.
type Config struct {
	MaxAttempts      int
	TransientRetries int
	Backoff          *apperrors.Policy // Delay between transient retries
	CallTimeout      time.Duration     // Per-invocation timeout; zero means none

	Invoker    model.Invoker
	Selector   *access.Selector
	Builder    *params.Builder
	Classifier *classifier.Classifier
	Parameters *tracker.ParameterTracker
	Access     *tracker.AccessTracker
	Stats      *stats.Collector
	Logger     zerolog.Logger
}

// Engine executes requests. It holds no per-request state and is safe for
// concurrent use; concurrent requests share only the trackers.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates an engine, filling unset collaborators with defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.TransientRetries < 0 {
		cfg.TransientRetries = 0
	}
	if cfg.Backoff == nil {
		cfg.Backoff = apperrors.FetchPolicy()
	}
	if cfg.Selector == nil {
		cfg.Selector = access.NewSelector(cfg.Logger)
	}
	if cfg.Builder == nil {
		cfg.Builder = params.NewBuilder(nil, cfg.Logger)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.NewClassifier()
	}
	if cfg.Parameters == nil {
		cfg.Parameters = tracker.NewParameterTracker(tracker.DefaultCapacity)
	}
	if cfg.Access == nil {
		cfg.Access = tracker.NewAccessTracker(tracker.DefaultCapacity)
	}
	return &Engine{cfg: cfg, log: cfg.Logger}
}

// run is the state of one request.
type run struct {
	id       string
	req      *Request
	store    *catalog.Store
	started  time.Time
	slots    int
	attempts []protocol.RequestAttempt
	errs     []error
	warnings []string
	log      zerolog.Logger

	skipped       int
	skippedFields []string
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, msg)
	r.log.Warn().Msg(msg)
}

// Execute runs req against the catalog snapshot in store. It returns a
// *RetryExhaustedError when no candidate succeeded.
func (e *Engine) Execute(ctx context.Context, store *catalog.Store, req *Request) (*Result, error) {
	if len(req.Candidates) == 0 {
		return nil, apperrors.User(apperrors.CodeValidation, "request has no candidates")
	}
	if len(req.Messages) == 0 {
		return nil, apperrors.User(apperrors.CodeValidation, "request has no messages")
	}

	r := &run{
		id:      uuid.NewString(),
		req:     req,
		store:   store,
		started: time.Now(),
	}
	r.log = e.log.With().Str("request_id", r.id).Logger()

	for i, c := range req.Candidates {
		if ctx.Err() != nil {
			break
		}
		if r.slots >= e.cfg.MaxAttempts {
			r.warn("attempt budget of %d exhausted; %d candidates not tried", e.cfg.MaxAttempts, len(req.Candidates)-i)
			break
		}

		res, done := e.tryCandidate(ctx, r, c, r.servable(req.Candidates[i+1:]))
		if done {
			e.cfg.Stats.RecordRequest(true, res.Response.Usage.TotalTokens, res.Elapsed)
			return res, nil
		}
	}

	exhausted := &RetryExhaustedError{
		RequestID: r.id,
		Attempts:  r.attempts,
		Errors:    r.errs,
		Warnings:  r.warnings,
		Err:       ctx.Err(),
	}
	exhausted.summarize(r.skippedFields, r.skipped)
	e.cfg.Stats.RecordRequest(false, 0, time.Since(r.started))
	r.log.Error().Int("attempts", len(r.attempts)).Err(exhausted).Msg("request failed on every candidate")
	return nil, exhausted
}

// servable reports whether any of candidates can be served from the snapshot.
func (r *run) servable(candidates []Candidate) bool {
	for _, c := range candidates {
		name, ok := r.store.Resolve(c.Model)
		if !ok {
			continue
		}
		if info, ok := r.store.AccessInfo(name, c.Region); ok && info.Available() {
			return true
		}
	}
	return false
}

// tryCandidate drives the state machine for one candidate. It returns a
// result and true on success; false means advance to the next candidate.
// When more is set, transient retries leave the last slot to the candidates
// that follow.
func (e *Engine) tryCandidate(ctx context.Context, r *run, c Candidate, more bool) (*Result, bool) {
	// SELECT_CANDIDATE
	name, ok := r.store.Resolve(c.Model)
	if !ok {
		r.warn("model %q not in catalog; skipping %s", c.Model, c)
		return nil, false
	}
	entry, _ := r.store.Model(name)
	info, ok := r.store.AccessInfo(name, c.Region)
	if !ok || !info.Available() {
		r.warn("model %q not available in %s; skipping", name, c.Region)
		return nil, false
	}

	// BUILD_REQUEST
	fields, preStripped, ok := e.bestParameters(r, name, c.Region, e.cfg.Builder.Build(r.req.Params, name, entry.ModelID))
	if !ok {
		return nil, false
	}

	var pref *tracker.AccessPreference
	if p, ok := e.cfg.Access.Query(name, c.Region); ok {
		pref = &p
	}
	sel, err := e.cfg.Selector.Select(info, pref)
	if err != nil {
		r.warn("%v; skipping %s", err, c)
		return nil, false
	}

	var (
		failedMethods   []protocol.AccessMethod
		profileSwitched bool
		paramRetried    = preStripped
		transientLeft   = e.cfg.TransientRetries
		consume         = true
	)

	for {
		if ctx.Err() != nil {
			return nil, false
		}
		if consume {
			r.slots++
		}

		// INVOKE
		resp, attempt := e.invoke(ctx, r, name, c.Region, sel, fields, consume)
		consume = false

		// CLASSIFY_OUTCOME
		if attempt.Succeeded() {
			learned := profileSwitched || (sel.Learned && pref != nil && pref.LearnedFromError)
			e.cfg.Access.RecordSuccess(name, c.Region, sel.Method, learned)
			if len(fields) > 0 {
				e.cfg.Parameters.RecordSuccess(name, c.Region, fields)
			}
			return &Result{
				RequestID:    r.id,
				Response:     resp,
				Model:        name,
				Region:       c.Region,
				AccessMethod: sel.Method,
				Identifier:   sel.Identifier,
				Parameters:   fields,
				Attempts:     r.attempts,
				Warnings:     r.warnings,
				SlotsUsed:    r.slots,
				Elapsed:      time.Since(r.started),
			}, true
		}

		switch attempt.Outcome {
		case protocol.OutcomeTransient:
			limit := e.cfg.MaxAttempts
			if more {
				limit--
			}
			if transientLeft <= 0 || r.slots >= limit {
				return nil, false
			}
			retry := e.cfg.TransientRetries - transientLeft
			transientLeft--
			delay := e.cfg.Backoff.Backoff(retry, r.errs[len(r.errs)-1])
			r.log.Debug().Str("candidate", c.String()).Dur("delay", delay).Msg("transient failure; retrying candidate")
			if err := apperrors.Sleep(ctx, delay); err != nil {
				return nil, false
			}
			consume = true

		case protocol.OutcomeParameterIncompatible:
			e.cfg.Parameters.RecordFailure(name, c.Region, fields, attempt.Fields)
			if paramRetried || len(fields) == 0 {
				return nil, false
			}
			paramRetried = true
			// Fields the vendor names but that were never sent do not count.
			offending := attempt.Fields
			if len(offending) == 0 {
				offending = params.Keys(fields)
			}
			fields = params.Strip(fields, offending)
			if len(fields) == 0 {
				fields = nil
			}
			r.warn("%s in %s rejected parameters %v; retrying without them", name, c.Region, offending)

		case protocol.OutcomeProfileRequired:
			failedMethods = append(failedMethods, sel.Method)
			next, ok := e.cfg.Selector.NextProfile(info, failedMethods...)
			if !ok {
				e.cfg.Access.RecordRequirement(name, c.Region, protocol.AccessRegionalProfile)
				r.warn("%s in %s requires an inference profile but none is available", name, c.Region)
				return nil, false
			}
			e.cfg.Access.RecordRequirement(name, c.Region, next.Method)
			r.log.Warn().
				Str("model", name).
				Str("region", c.Region).
				Str("from", string(sel.Method)).
				Str("to", string(next.Method)).
				Msg("profile required; retrying with inference profile")
			sel = next
			profileSwitched = true

		default:
			// Content incompatibility and fatal errors advance the candidate.
			return nil, false
		}
	}
}

// bestParameters returns the parameter set to start a candidate with. A set
// known to be rejected is replaced by the set without the rejected fields;
// the candidate is skipped when that one is known bad too. The second result
// reports whether fields were stripped up front.
func (e *Engine) bestParameters(r *run, name, region string, fields map[string]any) (map[string]any, bool, bool) {
	record, ok := e.cfg.Parameters.Query(name, region, fields)
	if !ok || record.Compatible || len(fields) == 0 {
		return fields, false, true
	}

	offending := params.Present(fields, record.Fields)
	if len(offending) == 0 {
		offending = params.Keys(fields)
	}
	stripped := params.Strip(fields, offending)
	if len(stripped) == 0 {
		stripped = nil
	}
	if e.cfg.Parameters.IsKnownIncompatible(name, region, stripped) {
		r.skipped++
		r.skippedFields = append(r.skippedFields, offending...)
		e.cfg.Stats.RecordTrackerSkip()
		r.warn("parameters %v known incompatible with %s in %s; skipping", params.Keys(fields), name, region)
		return nil, false, false
	}

	e.cfg.Stats.RecordTrackerReduction()
	r.warn("parameters %v known incompatible with %s in %s; sending without them", offending, name, region)
	return stripped, true, true
}

// invoke performs one attempt and records it.
func (e *Engine) invoke(ctx context.Context, r *run, name, region string, sel access.Selection, fields map[string]any, consumed bool) (*model.Response, protocol.RequestAttempt) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	}
	defer cancel()

	start := time.Now()
	resp, err := e.cfg.Invoker.Invoke(callCtx, &model.Request{
		Region:      region,
		Identifier:  sel.Identifier,
		Messages:    r.req.Messages,
		System:      r.req.System,
		Inference:   r.req.Inference,
		ExtraFields: fields,
	})
	elapsed := time.Since(start)
	if err == nil && resp == nil {
		err = apperrors.System(apperrors.CodeInvokeFailed, "invoker returned no response")
	}

	outcome := e.cfg.Classifier.Classify(err)
	attempt := protocol.RequestAttempt{
		ID:           uuid.NewString(),
		Number:       len(r.attempts) + 1,
		Model:        name,
		Region:       region,
		AccessMethod: sel.Method,
		Identifier:   sel.Identifier,
		Parameters:   fields,
		Outcome:      outcome.Kind,
		Message:      outcome.Message,
		Fields:       params.Present(fields, outcome.Fields),
		ConsumedSlot: consumed,
		StartedAt:    start,
		DurationMs:   elapsed.Milliseconds(),
	}
	r.attempts = append(r.attempts, attempt)
	e.cfg.Stats.RecordAttempt(outcome.Kind, sel.Method, elapsed)

	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("attempt %d (%s@%s via %s): %w", attempt.Number, name, region, sel.Method, err))
		r.log.Debug().
			Int("attempt", attempt.Number).
			Str("model", name).
			Str("region", region).
			Str("method", string(sel.Method)).
			Str("outcome", string(outcome.Kind)).
			Err(err).
			Msg("attempt failed")
		return nil, attempt
	}
	return resp, attempt
}
