// Package errors provides the error taxonomy for catalog acquisition and
// request retries.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ============================================================
// Error Categories
// ============================================================

// Category defines the type of error for handling decisions.
type Category int

const (
	// CategoryTemporary errors are retryable in place (network, 5xx, not ready)
	CategoryTemporary Category = iota

	// CategoryPermanent errors are not retryable (access denied, not found)
	CategoryPermanent

	// CategoryUser errors are due to caller input (validation)
	CategoryUser

	// CategorySystem errors are system-level (disk full, permissions)
	CategorySystem

	// CategoryRateLimit errors are due to throttling
	CategoryRateLimit

	// CategoryParameterIncompatible errors mean the vendor rejected an extra request field
	CategoryParameterIncompatible

	// CategoryProfileRequired errors mean the model must be invoked through an inference profile
	CategoryProfileRequired

	// CategoryContentIncompatible errors mean the model rejects the content type
	CategoryContentIncompatible
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTemporary:
		return "temporary"
	case CategoryPermanent:
		return "permanent"
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryParameterIncompatible:
		return "parameter_incompatible"
	case CategoryProfileRequired:
		return "profile_required"
	case CategoryContentIncompatible:
		return "content_incompatible"
	default:
		return "unknown"
	}
}

// ============================================================
// AppError - Main Error Type
// ============================================================

// AppError is the main error type for catalog and invocation failures.
type AppError struct {
	// Code is a unique error code for programmatic handling
	Code string

	// Message is a human-readable error message
	Message string

	// Category determines how the error should be handled
	Category Category

	// Inner is the underlying error
	Inner error

	// Retryable indicates if the same call can be repeated
	Retryable bool

	// Suggestions are recovery suggestions for the caller
	Suggestions []string

	// Context is additional debugging information
	Context map[string]interface{}

	// RetryAfter is the suggested delay before retry
	RetryAfter time.Duration
}

// Error returns the error message.
func (e *AppError) Error() string {
	var sb strings.Builder

	if e.Code != "" {
		sb.WriteString("[")
		sb.WriteString(e.Code)
		sb.WriteString("] ")
	}

	sb.WriteString(e.Message)

	if e.Inner != nil {
		innerMsg := e.Inner.Error()
		if innerMsg != "" && innerMsg != e.Message {
			sb.WriteString(": ")
			sb.WriteString(innerMsg)
		}
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Inner
}

// Fields returns the offending request fields recorded on a parameter error.
func (e *AppError) Fields() []string {
	if e.Context == nil {
		return nil
	}
	fields, _ := e.Context[ContextFields].([]string)
	return fields
}

// ============================================================
// Error Constructors
// ============================================================

// Wrap wraps an existing error with context.
func Wrap(err error, code, message string, category Category) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:        code,
			Message:     message,
			Category:    category,
			Inner:       err,
			Retryable:   appErr.Retryable,
			Suggestions: appErr.Suggestions,
			Context:     appErr.Context,
			RetryAfter:  appErr.RetryAfter,
		}
	}

	return &AppError{
		Code:     code,
		Message:  message,
		Category: category,
		Inner:    err,
	}
}

// Transient creates a retryable temporary error.
func Transient(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryTemporary,
		Retryable: true,
	}
}

// Permanent creates a non-retryable permanent error.
func Permanent(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryPermanent,
		Retryable: false,
	}
}

// User creates a caller input error.
func User(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategoryUser,
		Retryable: false,
	}
}

// System creates a system-level error.
func System(code, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  CategorySystem,
		Retryable: false,
	}
}

// RateLimit creates a throttling error with retry after duration.
func RateLimit(code, message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   CategoryRateLimit,
		Retryable:  true,
		RetryAfter: retryAfter,
		Suggestions: []string{
			fmt.Sprintf("Wait %s before retrying", retryAfter),
			"Request a higher service quota for the model",
		},
	}
}

// ParameterIncompatible creates an error naming the rejected request fields.
// An empty field list means the vendor did not say which field it rejected.
func ParameterIncompatible(message string, fields ...string) *AppError {
	return &AppError{
		Code:     CodeParameterIncompatible,
		Message:  message,
		Category: CategoryParameterIncompatible,
		Context:  map[string]interface{}{ContextFields: append([]string(nil), fields...)},
	}
}

// ProfileRequired creates an error for models that reject direct access.
func ProfileRequired(message string) *AppError {
	return &AppError{
		Code:     CodeProfileRequired,
		Message:  message,
		Category: CategoryProfileRequired,
		Suggestions: []string{
			"Invoke the model through a regional or global inference profile",
		},
	}
}

// ContentIncompatible creates an error for content the model cannot accept.
func ContentIncompatible(message string) *AppError {
	return &AppError{
		Code:     CodeContentIncompatible,
		Message:  message,
		Category: CategoryContentIncompatible,
	}
}

// ============================================================
// Builder Pattern for Fluent Error Construction
// ============================================================

// Builder provides fluent error construction.
type Builder struct {
	err *AppError
}

// NewBuilder starts building a new error.
func NewBuilder(code, message string) *Builder {
	return &Builder{
		err: &AppError{
			Code:     code,
			Message:  message,
			Category: CategoryTemporary,
			Context:  make(map[string]interface{}),
		},
	}
}

// Category sets the error category. Temporary and rate-limit errors become retryable.
func (b *Builder) Category(c Category) *Builder {
	b.err.Category = c
	b.err.Retryable = c == CategoryTemporary || c == CategoryRateLimit
	return b
}

// Wrap sets the underlying error.
func (b *Builder) Wrap(err error) *Builder {
	b.err.Inner = err
	return b
}

// WithSuggestion adds a recovery suggestion.
func (b *Builder) WithSuggestion(suggestion string) *Builder {
	b.err.Suggestions = append(b.err.Suggestions, suggestion)
	return b
}

// WithContext adds context information.
func (b *Builder) WithContext(key string, value interface{}) *Builder {
	b.err.Context[key] = value
	return b
}

// WithRetryAfter sets the suggested retry delay.
func (b *Builder) WithRetryAfter(duration time.Duration) *Builder {
	b.err.RetryAfter = duration
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *AppError {
	return b.err
}

// ============================================================
// Error Codes
// ============================================================

const (
	// Invocation errors
	CodeThrottled             = "THROTTLED"
	CodeServiceUnavailable    = "SERVICE_UNAVAILABLE"
	CodeModelNotReady         = "MODEL_NOT_READY"
	CodeModelTimeout          = "MODEL_TIMEOUT"
	CodeAccessDenied          = "ACCESS_DENIED"
	CodeModelNotFound         = "MODEL_NOT_FOUND"
	CodeValidation            = "VALIDATION_FAILED"
	CodeParameterIncompatible = "PARAMETER_INCOMPATIBLE"
	CodeProfileRequired       = "PROFILE_REQUIRED"
	CodeContentIncompatible   = "CONTENT_INCOMPATIBLE"
	CodeInvokeFailed          = "INVOKE_FAILED"

	// Catalog errors
	CodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	CodeRegionFetchFailed  = "REGION_FETCH_FAILED"
	CodeBundledInvalid     = "BUNDLED_INVALID"

	// Cache errors
	CodeCacheRead    = "CACHE_READ_FAILED"
	CodeCacheWrite   = "CACHE_WRITE_FAILED"
	CodeCacheInvalid = "CACHE_INVALID"
	CodeCacheExpired = "CACHE_EXPIRED"
	CodeCacheVersion = "CACHE_VERSION_MISMATCH"

	// Config errors
	CodeConfigInvalid = "CONFIG_INVALID"
)

// ContextFields is the AppError.Context key holding offending field names.
const ContextFields = "fields"

// ============================================================
// Sentinels
// ============================================================

var (
	// ErrNoCache is returned when no cache location holds a usable catalog.
	ErrNoCache = errors.New("no usable cached catalog")

	// ErrCatalogUnavailable matches CatalogUnavailableError via errors.Is.
	ErrCatalogUnavailable = errors.New("model catalog unavailable")

	// ErrRetryExhausted matches exhausted request errors via errors.Is.
	ErrRetryExhausted = errors.New("all retry candidates exhausted")
)

// ============================================================
// Catalog and Cache Errors
// ============================================================

// Stage names one source in the acquisition waterfall.
type Stage string

const (
	StageCache   Stage = "cache"
	StageAPI     Stage = "api"
	StageBundled Stage = "bundled"
)

// CatalogUnavailableError is returned when every acquisition source failed.
type CatalogUnavailableError struct {
	Reasons map[Stage]error
}

// Error lists the failure reason of every stage.
func (e *CatalogUnavailableError) Error() string {
	stages := make([]string, 0, len(e.Reasons))
	for stage := range e.Reasons {
		stages = append(stages, string(stage))
	}
	sort.Strings(stages)

	var sb strings.Builder
	sb.WriteString(ErrCatalogUnavailable.Error())
	for _, stage := range stages {
		sb.WriteString("; ")
		sb.WriteString(stage)
		sb.WriteString(": ")
		if err := e.Reasons[Stage(stage)]; err != nil {
			sb.WriteString(err.Error())
		} else {
			sb.WriteString("skipped")
		}
	}
	return sb.String()
}

// Is matches ErrCatalogUnavailable.
func (e *CatalogUnavailableError) Is(target error) bool {
	return target == ErrCatalogUnavailable
}

// CacheError describes a failed cache read or write. It never leaves the cache layer.
type CacheError struct {
	Op   string // "load" or "save"
	Path string
	Code string
	Err  error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s [%s]: %v", e.Op, e.Path, e.Code, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// ============================================================
// Helpers
// ============================================================

// GetCategory extracts the category from an error.
// Returns CategoryTemporary for non-AppError errors.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryTemporary
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	return CategoryTemporary
}

// IsRetryable checks if an error is retryable in place.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}

	// Unknown errors default to retryable
	return true
}

// GetRetryAfter returns the suggested retry duration.
func GetRetryAfter(err error) time.Duration {
	if err == nil {
		return 0
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.RetryAfter
	}

	return 0
}

// GetSuggestions returns recovery suggestions for an error.
func GetSuggestions(err error) []string {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Suggestions
	}

	return nil
}

// Join re-exports errors.Join so callers need only this package.
func Join(errs ...error) error { return errors.Join(errs...) }
