// Package pricingerr defines the typed error taxonomy shared across the
// pricing core, adapted from the monorepo's IAROSError pattern down to the
// four buckets this system actually raises.
package pricingerr

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies the failure domain of an error.
type Kind string

const (
	// KindConfiguration covers malformed config, missing env vars, bad
	// hyperparameters — anything that should fail fast at startup.
	KindConfiguration Kind = "configuration"
	// KindData covers malformed or missing rows from the data-access
	// layer: empty frames, unparseable records, schema drift.
	KindData Kind = "data"
	// KindTransientStore covers recoverable failures talking to
	// Postgres, Redis, or the market-feature source.
	KindTransientStore Kind = "transient_store"
	// KindModelLifecycle covers training, persistence, promotion and
	// rollback failures.
	KindModelLifecycle Kind = "model_lifecycle"
)

// Error is the core taxonomy type. Every error surfaced out of the pricing
// packages should either be one of these or wrap one.
type Error struct {
	ID        string
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
	Context   map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.ID, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.ID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newErr(kind Kind, retryable bool, msg string, cause error) *Error {
	return &Error{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   msg,
		Retryable: retryable,
		Cause:     cause,
		Context:   map[string]interface{}{},
	}
}

// Configuration builds a non-retryable configuration error.
func Configuration(msg string, cause error) *Error {
	return newErr(KindConfiguration, false, msg, cause)
}

// Data builds a non-retryable data error.
func Data(msg string, cause error) *Error {
	return newErr(KindData, false, msg, cause)
}

// TransientStore builds a retryable store error.
func TransientStore(msg string, cause error) *Error {
	return newErr(KindTransientStore, true, msg, cause)
}

// ModelLifecycle builds a non-retryable model-lifecycle error.
func ModelLifecycle(msg string, cause error) *Error {
	return newErr(KindModelLifecycle, false, msg, cause)
}

// WithContext attaches a key/value pair and returns the same error for
// chaining at the call site.
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the first *Error in err's chain (err itself
// included) is marked retryable. Non-taxonomy errors are treated as
// non-retryable.
func IsRetryable(err error) bool {
	var pe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			pe = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return pe != nil && pe.Retryable
}

// KindOf extracts the Kind of the first *Error in err's chain, and false
// if none is found.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "", false
}
