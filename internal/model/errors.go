package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUpstreamError    = errors.New("upstream error")
	ErrRateLimited      = errors.New("rate limited")
	ErrMutationInFlight = errors.New("mutation in flight")
	ErrConflictPending  = errors.New("kitchen conflict pending")
	ErrUpgradeRequired  = errors.New("client upgrade required")
)

// APIError represents a structured error for API responses.
// Implements error interface and supports unwrapping.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for invalid input.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for auth failures.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewUpstreamError creates a 502 error for ordering-backend failures.
// The engine treats these as transient: rollback, surface, no retry.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}

// NewMutationInFlightError creates a 409 error for a second mutation of an
// item whose previous mutation has not completed. Requests are rejected,
// never queued, to keep per-item increments ordered.
func NewMutationInFlightError(itemID string) *APIError {
	return &APIError{
		Code:       "MUTATION_IN_FLIGHT",
		Message:    fmt.Sprintf("a mutation for item %s is already in flight", itemID),
		StatusCode: 409,
		Err:        ErrMutationInFlight,
	}
}

// NewConflictPendingError creates a 409 error for an add that targets a
// different kitchen while the cart is non-empty. The caller must resolve
// the conflict (confirm or cancel) before the add can proceed.
func NewConflictPendingError(kitchenName string) *APIError {
	msg := "your cart holds items from another kitchen"
	if kitchenName != "" {
		msg = fmt.Sprintf("your cart holds items from %s", kitchenName)
	}
	return &APIError{
		Code:       "CONFLICT_PENDING",
		Message:    msg,
		StatusCode: 409,
		Err:        ErrConflictPending,
	}
}

// NewConflictStateError creates a 409 error for conflict resolution calls
// made when no conflict is pending.
func NewConflictStateError(reason string) *APIError {
	return &APIError{
		Code:       "CONFLICT_STATE",
		Message:    reason,
		StatusCode: 409,
		Err:        ErrInvalidRequest,
	}
}

// NewUpgradeRequiredError creates a 426 error for app builds older than
// the minimum supported version.
func NewUpgradeRequiredError(minVersion string) *APIError {
	return &APIError{
		Code:       "UPGRADE_REQUIRED",
		Message:    fmt.Sprintf("app version %s or newer is required", minVersion),
		StatusCode: 426,
		Err:        ErrUpgradeRequired,
	}
}
