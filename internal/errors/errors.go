// Package errors provides centralized, categorized error construction for
// the mixer core, with an optional telemetry reporting hook for critical
// failures.
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorCategory classifies an error along the lines §7 of the core
// specification names as distinct kinds.
type ErrorCategory string

const (
	CategoryValidation        ErrorCategory = "validation"
	CategoryDevice            ErrorCategory = "device"
	CategoryResampler         ErrorCategory = "resampler"
	CategoryQueueOverrun      ErrorCategory = "queue-overrun"
	CategoryQueueUnderrun     ErrorCategory = "queue-underrun"
	CategoryNotRegistered     ErrorCategory = "not-registered"
	CategoryAlreadyRegistered ErrorCategory = "already-registered"
	CategoryShutdown          ErrorCategory = "shutdown"
	CategoryProcessing        ErrorCategory = "processing"
	CategoryState             ErrorCategory = "state"
	CategoryResource          ErrorCategory = "resource"
)

// Priority is an explicit severity override used to gate telemetry reporting.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ComponentUnknown is used when no component was set on the builder.
const ComponentUnknown = "unknown"

// EnhancedError wraps an underlying error with component/category/context
// metadata so that logs and telemetry can group related failures.
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Priority  Priority
	Context   map[string]any
	Timestamp time.Time

	mu       sync.Mutex
	reported bool
}

// Error implements the error interface. A nil underlying error (pure
// validation failures built with New(nil)) renders using Context["error"]
// if present, falling back to the category name.
func (ee *EnhancedError) Error() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	if msg, ok := ee.Context["error"].(string); ok {
		return msg
	}
	return string(ee.Category)
}

// Unwrap exposes the wrapped error for errors.Is / errors.As.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is reports category equality against another *EnhancedError, otherwise
// defers to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	var other *EnhancedError
	if stderrors.As(target, &other) {
		return ee.Category == other.Category
	}
	return ee.Err != nil && stderrors.Is(ee.Err, target)
}

// Component returns the component name set on the builder, or
// ComponentUnknown.
func (ee *EnhancedError) Component() string {
	if ee.component == "" {
		return ComponentUnknown
	}
	return ee.component
}

// Report forwards the error to Sentry exactly once, if a DSN has been
// configured via InitTelemetry. Safe to call on every error; non-Critical errors
// and duplicate reports are no-ops.
func (ee *EnhancedError) Report() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	if ee.reported || ee.Priority != PriorityCritical || !telemetryEnabled() {
		return
	}
	ee.reported = true
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component())
		scope.SetTag("category", string(ee.Category))
		for k, v := range ee.Context {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee)
	})
}

var telemetryDSN string

// InitTelemetry configures the optional Sentry reporting hook. Calling it
// with an empty dsn disables reporting (the default).
func InitTelemetry(dsn string) error {
	telemetryDSN = dsn
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{Dsn: dsn})
}

func telemetryEnabled() bool {
	return telemetryDSN != ""
}

// builder accumulates fields before Build() freezes them into an
// *EnhancedError.
type builder struct {
	err       error
	component string
	category  ErrorCategory
	priority  Priority
	context   map[string]any
}

// New starts a builder wrapping err, which may be nil for pure validation
// failures (use Context("error", "...") to supply the message).
func New(err error) *builder {
	return &builder{err: err, context: make(map[string]any)}
}

// Newf is a convenience for New(fmt.Errorf(format, args...)).
func Newf(format string, args ...any) *builder {
	return New(fmt.Errorf(format, args...))
}

func (b *builder) Component(c string) *builder {
	b.component = c
	return b
}

func (b *builder) Category(c ErrorCategory) *builder {
	b.category = c
	return b
}

func (b *builder) PriorityLevel(p Priority) *builder {
	b.priority = p
	return b
}

func (b *builder) Context(key string, value any) *builder {
	b.context[key] = value
	return b
}

// Build finalizes the error. The zero Priority defaults to Medium.
func (b *builder) Build() *EnhancedError {
	priority := b.priority
	if priority == "" {
		priority = PriorityMedium
	}
	return &EnhancedError{
		Err:       b.err,
		component: b.component,
		Category:  b.category,
		Priority:  priority,
		Context:   b.context,
		Timestamp: time.Now(),
	}
}

// Is delegates to the standard library for plain error chains.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As delegates to the standard library for plain error chains.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join delegates to the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err is (or wraps) an *EnhancedError with the
// given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if stderrors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
