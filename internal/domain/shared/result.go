// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// ═══════════════════════════════════════════════════════════════════════════
// Result Protocol
// Every data-producing operation in the engine returns a Result: a closed
// three-state outcome (Loading / Success / Error). Consumers switch on the
// state instead of guessing from nil-ness, and combinators keep the state
// transitions honest: an Error never silently becomes a Success downstream.
// ═══════════════════════════════════════════════════════════════════════════

// ResultState identifies which of the three states a Result is in.
type ResultState int

const (
	// StateLoading - the operation is in flight. The Result may carry a
	// stale/cached partial payload for immediate rendering.
	StateLoading ResultState = iota

	// StateSuccess - the operation completed with a value.
	StateSuccess

	// StateError - the operation failed with a classified error.
	StateError
)

// String returns the string representation of the state.
func (s ResultState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind classifies a Result error so callers can choose a reaction
// (retry, back off, treat as first activity) without string matching.
type ErrorKind string

const (
	KindNetwork      ErrorKind = "network"
	KindTimeout      ErrorKind = "timeout"
	KindServer       ErrorKind = "server"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindStorage      ErrorKind = "storage"
	KindParsing      ErrorKind = "parsing"
	KindEmptyResult  ErrorKind = "empty_result"
	KindRateLimited  ErrorKind = "rate_limited"
	KindOffline      ErrorKind = "offline"
	KindUnknown      ErrorKind = "unknown"
)

// IsRetryable returns true for kinds that are worth retrying with backoff.
func (k ErrorKind) IsRetryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindServer, KindStorage, KindRateLimited, KindOffline:
		return true
	default:
		return false
	}
}

// IsLocalFailure returns true if the failure happened on this device
// (as opposed to the remote platform being unreachable).
func (k ErrorKind) IsLocalFailure() bool {
	return k == KindStorage || k == KindValidation || k == KindParsing
}

// ResultError carries the failure details of an Error-state Result.
type ResultError struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *ResultError) Unwrap() error {
	return e.Cause
}

// ═══════════════════════════════════════════════════════════════════════════
// Result type
// ═══════════════════════════════════════════════════════════════════════════

// Result is a tagged three-state outcome of an operation producing T.
// The zero value is a Loading result without a partial payload.
type Result[T any] struct {
	state      ResultState
	data       T
	hasPartial bool
	progress   int
	err        *ResultError
}

// Loading returns a Result in the Loading state without a partial payload.
func Loading[T any]() Result[T] {
	return Result[T]{state: StateLoading}
}

// LoadingWith returns a Loading Result carrying stale/cached data and a
// progress percentage clamped to 0..100.
func LoadingWith[T any](partial T, progress int) Result[T] {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return Result[T]{state: StateLoading, data: partial, hasPartial: true, progress: progress}
}

// Success returns a Result in the Success state.
func Success[T any](data T) Result[T] {
	return Result[T]{state: StateSuccess, data: data}
}

// Failure returns a Result in the Error state.
func Failure[T any](kind ErrorKind, message string, cause error) Result[T] {
	return Result[T]{state: StateError, err: &ResultError{Kind: kind, Message: message, Cause: cause}}
}

// FailureFrom builds an Error Result from an existing error, classifying it
// via KindOf. DomainError kinds are preserved; everything else is KindUnknown.
func FailureFrom[T any](err error) Result[T] {
	var re *ResultError
	if errors.As(err, &re) {
		return Result[T]{state: StateError, err: re}
	}
	return Failure[T](KindOf(err), err.Error(), err)
}

// WithPartial attaches a stale payload to a Loading or Error result so
// consumers can keep rendering the previous value next to the spinner or
// the error banner. Success results are returned unchanged.
func WithPartial[T any](r Result[T], partial T) Result[T] {
	if r.state == StateSuccess {
		return r
	}
	r.data = partial
	r.hasPartial = true
	return r
}

// State returns which of the three states the Result is in.
func (r Result[T]) State() ResultState {
	return r.state
}

// IsLoading returns true for Loading results.
func (r Result[T]) IsLoading() bool { return r.state == StateLoading }

// IsSuccess returns true for Success results.
func (r Result[T]) IsSuccess() bool { return r.state == StateSuccess }

// IsError returns true for Error results.
func (r Result[T]) IsError() bool { return r.state == StateError }

// Value returns the Success data. The boolean is false for Loading and
// Error results; partial Loading payloads are not returned here.
func (r Result[T]) Value() (T, bool) {
	if r.state == StateSuccess {
		return r.data, true
	}
	var zero T
	return zero, false
}

// Partial returns the stale payload of a Loading or Error result, if present.
func (r Result[T]) Partial() (T, bool) {
	if r.state != StateSuccess && r.hasPartial {
		return r.data, true
	}
	var zero T
	return zero, false
}

// Progress returns the Loading progress percentage (0 when absent).
func (r Result[T]) Progress() int {
	if r.state != StateLoading {
		return 0
	}
	return r.progress
}

// Err returns the error of an Error result, nil otherwise.
func (r Result[T]) Err() *ResultError {
	if r.state != StateError {
		return nil
	}
	return r.err
}

// ErrorKind returns the classification of an Error result, KindUnknown otherwise.
func (r Result[T]) ErrorKind() ErrorKind {
	if r.state == StateError && r.err != nil {
		return r.err.Kind
	}
	return KindUnknown
}

// GetOrDefault returns the Success data, or the fallback for Loading/Error.
// Record-bearing operations (XP grants, streak updates) must not use this
// to paper over an Error; they must propagate it explicitly.
func (r Result[T]) GetOrDefault(fallback T) T {
	if r.state == StateSuccess {
		return r.data
	}
	return fallback
}

// String returns a short representation for logging.
func (r Result[T]) String() string {
	switch r.state {
	case StateLoading:
		if r.hasPartial {
			return fmt.Sprintf("Loading(partial, %d%%)", r.progress)
		}
		return "Loading"
	case StateSuccess:
		return fmt.Sprintf("Success(%v)", r.data)
	case StateError:
		return fmt.Sprintf("Error(%v)", r.err)
	default:
		return "Result(?)"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Combinators
// Go methods cannot introduce new type parameters, so the transforming
// combinators are package-level generic functions.
// ═══════════════════════════════════════════════════════════════════════════

// Map transforms the Success data of a Result. Error results pass through
// unchanged. Loading results pass through, except an attached partial
// payload is mapped as well so stale data stays renderable.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch r.state {
	case StateSuccess:
		return Success(fn(r.data))
	case StateLoading:
		if r.hasPartial {
			return LoadingWith(fn(r.data), r.progress)
		}
		return Result[U]{state: StateLoading, progress: r.progress}
	default:
		return Result[U]{state: StateError, err: r.err}
	}
}

// FlatMap chains a dependent operation onto a Success result.
// Loading and Error short-circuit: the dependent operation never runs on
// partial or failed input.
func FlatMap[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	switch r.state {
	case StateSuccess:
		return fn(r.data)
	case StateLoading:
		return Result[U]{state: StateLoading, progress: r.progress}
	default:
		return Result[U]{state: StateError, err: r.err}
	}
}

// OnSuccess invokes fn for Success results and returns the Result unchanged.
func OnSuccess[T any](r Result[T], fn func(T)) Result[T] {
	if r.state == StateSuccess {
		fn(r.data)
	}
	return r
}

// OnError invokes fn for Error results and returns the Result unchanged.
func OnError[T any](r Result[T], fn func(*ResultError)) Result[T] {
	if r.state == StateError {
		fn(r.err)
	}
	return r
}

// Recover replaces an Error result with the outcome of fn; recovery may
// itself fail. Loading and Success pass through unchanged.
func Recover[T any](r Result[T], fn func(*ResultError) Result[T]) Result[T] {
	if r.state == StateError {
		return fn(r.err)
	}
	return r
}
