package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Ledger errors
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already registered")
	ErrVersionConflict = errors.New("snapshot version conflict")

	// Applier errors
	ErrConflictExhausted  = errors.New("optimistic concurrency retries exhausted")
	ErrInvariantViolation = errors.New("snapshot invariant violated, write aborted")

	// Mission errors
	ErrMissionNotFound      = errors.New("mission not found")
	ErrMissionFull          = errors.New("mission has reached max participants")
	ErrMissionNotJoinable   = errors.New("mission is not open for joining")
	ErrMissionAlreadyJoined = errors.New("mission already joined")

	// Catalog errors
	ErrUnknownCategory     = errors.New("waste category not in rule catalog")
	ErrUnknownSocialAction = errors.New("social action kind not in rule catalog")
)

// ValidationError rejects malformed input at the normalizer boundary.
// No state change has happened when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
