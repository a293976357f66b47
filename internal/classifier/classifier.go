// Package classifier maps invoke failures to retry outcomes.
//
// Classification flow:
// 1. Typed categories on errors.AppError (set by backend adapters)
// 2. Rule-based message patterns
// 3. Category or transport fallback (retryable means transient, otherwise fatal)
package classifier

import (
	"context"
	"errors"
	"net"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
	"github.com/Bestehorn/LLMManager-sub002/pkg/protocol"
)

// Outcome is a classified failure.
type Outcome struct {
	Kind    protocol.OutcomeKind
	Fields  []string // Offending request fields, parameter outcomes only
	Pattern string   // ID of the matching pattern, if any
	Message string
}

// Classifier classifies invoke errors. It is safe for concurrent use once
// configured.
type Classifier struct {
	patterns []*OutcomePattern
}

// NewClassifier creates a classifier with the default patterns.
func NewClassifier() *Classifier {
	return &Classifier{patterns: defaultPatterns()}
}

// Classify determines how the retry engine should react to err. A nil err
// is a success.
func (c *Classifier) Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: protocol.OutcomeSuccess}
	}
	msg := err.Error()

	// Step 1: typed categories
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Category {
		case apperrors.CategoryParameterIncompatible:
			fields := appErr.Fields()
			if len(fields) == 0 {
				fields = ExtractFields(msg)
			}
			return Outcome{Kind: protocol.OutcomeParameterIncompatible, Fields: fields, Message: msg}
		case apperrors.CategoryProfileRequired:
			return Outcome{Kind: protocol.OutcomeProfileRequired, Message: msg}
		case apperrors.CategoryContentIncompatible:
			return Outcome{Kind: protocol.OutcomeContentIncompatible, Message: msg}
		}
	}

	// Cancellation by the caller is never retried; a per-call deadline is.
	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: protocol.OutcomeFatal, Message: msg}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: protocol.OutcomeTransient, Message: msg}
	}

	// Step 2: message patterns
	if p := c.match(msg); p != nil {
		out := Outcome{Kind: p.Kind, Pattern: p.ID, Message: msg}
		if p.Kind == protocol.OutcomeParameterIncompatible {
			out.Fields = ExtractFields(msg)
		}
		return out
	}

	// Step 3: fallback
	if appErr != nil {
		if appErr.Retryable || appErr.Category == apperrors.CategoryTemporary || appErr.Category == apperrors.CategoryRateLimit {
			return Outcome{Kind: protocol.OutcomeTransient, Message: msg}
		}
		return Outcome{Kind: protocol.OutcomeFatal, Message: msg}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Outcome{Kind: protocol.OutcomeTransient, Message: msg}
	}
	return Outcome{Kind: protocol.OutcomeFatal, Message: msg}
}

func (c *Classifier) match(message string) *OutcomePattern {
	for _, p := range c.patterns {
		if p.Matches(message) {
			return p
		}
	}
	return nil
}

// SetPatterns replaces the outcome patterns.
func (c *Classifier) SetPatterns(patterns []*OutcomePattern) {
	c.patterns = patterns
}

// AddPattern adds a pattern checked before the existing ones.
func (c *Classifier) AddPattern(pattern *OutcomePattern) {
	c.patterns = append([]*OutcomePattern{pattern}, c.patterns...)
}
