package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict reports that another instance wrote the shared slot since
	// this session last synced.
	ErrConflict = errors.New("core: conflicting snapshot from another instance")
	// ErrValidationFailed is wrapped by ValidationError.
	ErrValidationFailed = errors.New("core: validation failed")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("core: session closed")
	// ErrUnknownStrategy is returned for an unrecognised conflict resolution strategy.
	ErrUnknownStrategy = errors.New("core: unknown conflict resolution strategy")
)

// ValidationError carries the summary of a failed manual save.
type ValidationError struct {
	Summary ValidationSummary
}

func (e *ValidationError) Error() string {
	if len(e.Summary.Errors) == 0 {
		return ErrValidationFailed.Error()
	}
	first := e.Summary.Errors[0]
	return fmt.Sprintf("%s: %d error(s), first %s: %s", ErrValidationFailed, e.Summary.ErrorCount, first.Path, first.Message)
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
