// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Storage errors
	ErrStorage        = errors.New("storage failure")
	ErrStorageTorn    = errors.New("storage state inconsistent")
	ErrOptimisticLock = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
	ErrOffline            = errors.New("remote unreachable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrParsing            = errors.New("response parsing failed")
	ErrEmptyResult        = errors.New("empty result")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "badge", "leaderboard", "dailygoal", "sync"
	Op      string // Operation that failed, e.g., "AddXP", "Merge"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progress ledger domain errors
var (
	ErrLedgerNotFound    = NewDomainError("progress", "Load", ErrNotFound, "ledger not found")
	ErrInvalidUserID     = NewDomainError("progress", "Validate", ErrInvalidID, "invalid user ID")
	ErrNonPositiveXP     = NewDomainError("progress", "AddXP", ErrValidation, "xp amount must be positive")
	ErrUnknownXPSource   = NewDomainError("progress", "Validate", ErrInvalidInput, "unknown xp source")
	ErrLedgerSaveFailed  = NewDomainError("progress", "Save", ErrStorage, "failed to persist ledger")
	ErrLedgerConcurrency = NewDomainError("progress", "Save", ErrOptimisticLock, "concurrent ledger modification")
)

// Badge domain errors
var (
	ErrBadgeNotFound      = NewDomainError("badge", "Find", ErrNotFound, "badge not found in catalog")
	ErrBadgeAlreadyEarned = NewDomainError("badge", "Award", ErrAlreadyExists, "badge already earned")
	ErrUnknownPredicate   = NewDomainError("badge", "Evaluate", ErrInvalidInput, "unknown eligibility predicate")
	ErrEmptyCatalog       = NewDomainError("badge", "Load", ErrEmptyResult, "badge catalog is empty")
)

// Leaderboard domain errors
var (
	ErrUserNotRanked = NewDomainError("leaderboard", "FindRank", ErrNotFound, "user has no activity in scope window")
	ErrInvalidScope  = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "invalid leaderboard scope")
	ErrEmptyCohort   = NewDomainError("leaderboard", "Rank", ErrEmptyResult, "cohort snapshot is empty")
	ErrCohortFetch   = NewDomainError("leaderboard", "FetchCohort", ErrExternalService, "failed to fetch cohort")
	ErrSnapshotStale = NewDomainError("leaderboard", "Refresh", ErrExpired, "leaderboard snapshot is stale")
	ErrInvalidRank   = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid rank")
)

// Daily goal domain errors
var (
	ErrGoalNotFound  = NewDomainError("dailygoal", "Load", ErrNotFound, "no goal recorded for this day")
	ErrGoalArchived  = NewDomainError("dailygoal", "Record", ErrInvalidState, "cannot mutate an archived goal")
	ErrInvalidTarget = NewDomainError("dailygoal", "Validate", ErrValueOutOfRange, "goal targets must be positive")
)

// Sync domain errors
var (
	ErrSyncInFlight  = NewDomainError("sync", "Start", ErrAlreadyProcessed, "sync already in flight for user")
	ErrSyncCancelled = NewDomainError("sync", "Run", ErrExpired, "sync cancelled before commit")
	ErrPushRejected  = NewDomainError("sync", "Push", ErrExternalService, "remote rejected xp delta")
	ErrSyncPartial   = NewDomainError("sync", "RunAll", ErrExternalService, "some ledgers failed to sync")
)

// Remote platform errors
var (
	ErrRemoteUnavailable = NewDomainError("remote", "Request", ErrServiceUnavailable, "Oqu platform is unavailable")
	ErrRemoteRateLimited = NewDomainError("remote", "Request", ErrRateLimited, "Oqu platform rate limit exceeded")
	ErrRemoteTimeout     = NewDomainError("remote", "Request", ErrTimeout, "Oqu platform request timeout")
	ErrRemoteBadResponse = NewDomainError("remote", "Parse", ErrParsing, "invalid response from Oqu platform")
	ErrRemoteOffline     = NewDomainError("remote", "Dial", ErrOffline, "no network connectivity")
	ErrRemoteUnauth      = NewDomainError("remote", "Auth", ErrUnauthorized, "remote authentication failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStorage checks if the error is a local persistence failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrStorageTorn) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrOffline)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrOffline) ||
		errors.Is(err, ErrStorage) ||
		errors.Is(err, ErrOptimisticLock)
}

// KindOf classifies an error into a Result ErrorKind.
// DomainError kinds map through their base error; everything unrecognized
// is KindUnknown. Context cancellation maps to timeout.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrOffline):
		return KindOffline
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrParsing), errors.Is(err, ErrInvalidFormat):
		return KindParsing
	case errors.Is(err, ErrEmptyResult):
		return KindEmptyResult
	case IsValidation(err):
		return KindValidation
	case IsStorage(err):
		return KindStorage
	case errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrExternalService):
		return KindServer
	default:
		return KindUnknown
	}
}
