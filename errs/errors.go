package errs

import (
	"errors"
	"fmt"
)

// ValidationError covers malformed input, expired or password-protected
// booking links, failed intake answers and exceeded capacity. Always
// client-recoverable by correcting the request.
type ValidationError struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError means the requested slot is no longer free. Clients should
// re-fetch availability and pick another slot.
type ConflictError struct {
	HostID uint   `json:"host_id,omitempty"`
	Detail string `json:"detail"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict: %s", e.Detail)
}

func Conflict(hostID uint, detail string) *ConflictError {
	return &ConflictError{HostID: hostID, Detail: detail}
}

// NoAvailableHostError is returned when routing exhausts the candidate pool
// and the appointment type is configured to reject rather than soft-cap.
type NoAvailableHostError struct {
	PoolSize int    `json:"pool_size"`
	Policy   string `json:"policy"`
}

func (e *NoAvailableHostError) Error() string {
	return fmt.Sprintf("no available host in pool of %d (policy %s)", e.PoolSize, e.Policy)
}

// ExternalSyncError wraps a calendar provider failure. Transient errors are
// retried with backoff by the sync worker; permanent ones are logged and
// surfaced, never blocking the internal booking.
type ExternalSyncError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *ExternalSyncError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s sync error (%s): %v", e.Provider, kind, e.Err)
}

func (e *ExternalSyncError) Unwrap() error { return e.Err }

// SyncTransient marks err as retryable for the sync worker.
func SyncTransient(provider string, err error) *ExternalSyncError {
	return &ExternalSyncError{Provider: provider, Transient: true, Err: err}
}

// SyncPermanent marks err as non-retryable; the attempt is logged and surfaced.
func SyncPermanent(provider string, err error) *ExternalSyncError {
	return &ExternalSyncError{Provider: provider, Transient: false, Err: err}
}

// WorkflowExecutionError is a failed workflow action. Retried with backoff;
// once attempts are exhausted the execution is marked dead for operator review.
type WorkflowExecutionError struct {
	ExecutionID uint
	Err         error
}

func (e *WorkflowExecutionError) Error() string {
	return fmt.Sprintf("workflow execution %d failed: %v", e.ExecutionID, e.Err)
}

func (e *WorkflowExecutionError) Unwrap() error { return e.Err }

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNoAvailableHost reports whether err is (or wraps) a NoAvailableHostError.
func IsNoAvailableHost(err error) bool {
	var ne *NoAvailableHostError
	return errors.As(err, &ne)
}
