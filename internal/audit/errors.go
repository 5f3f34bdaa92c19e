// errors.go defines the error taxonomy of the audit subsystem. The recorder
// swallows storage errors (audit is never a hard dependency of the operation it
// documents); the query side propagates everything to its caller. No retries
// are performed anywhere — callers may retry at their own discretion.
package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied means the caller's role scope excludes the requested
	// category. No partial data is returned.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means a lookup by identifier matched nothing. Aggregate
	// queries over an empty store return zeroes, not ErrNotFound.
	ErrNotFound = errors.New("audit entry not found")
)

// ValidationError reports a missing or malformed required input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
	}
	return "missing required field: " + e.Field
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
