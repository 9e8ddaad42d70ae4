package errors

import (
	"errors"
	"fmt"

	"github.com/thoreinstein/cfgsnap/internal/rollback"
	"github.com/thoreinstein/cfgsnap/internal/store"
)

// Exit codes for the cfgsnap CLI. Each structured error kind maps to its
// own code, because the operator response differs: "nothing to restore" is
// not "bad target" is not "data integrity problem".
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (invalid input, flags, config).
	ExitUser = 1

	// ExitSystem indicates a system-related error (I/O, permissions, disk).
	ExitSystem = 2

	// ExitNoSnapshots indicates the identity has no snapshots at all.
	ExitNoSnapshots = 3

	// ExitVersionNotFound indicates the requested version does not exist.
	ExitVersionNotFound = 4

	// ExitCorrupt indicates a snapshot failed integrity verification.
	ExitCorrupt = 5

	// ExitConflict indicates a concurrent writer won a version race and the
	// bounded retries were exhausted.
	ExitConflict = 6
)

// CodeFor maps an error to its process exit code.
func CodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, store.ErrNoSnapshots):
		return ExitNoSnapshots
	case errors.Is(err, store.ErrVersionNotFound):
		return ExitVersionNotFound
	case errors.Is(err, store.ErrCorruptSnapshot):
		return ExitCorrupt
	case errors.Is(err, store.ErrIdentityConflict):
		return ExitConflict
	case errors.Is(err, store.ErrInvalidPayload):
		return ExitUser
	case errors.Is(err, store.ErrStorageUnavailable),
		errors.Is(err, rollback.ErrWriteTargetUnavailable):
		return ExitSystem
	default:
		return ExitUser
	}
}

// ExitError wraps an error with an exit code and optional suggestion for the CLI.
// It implements the error interface and supports unwrapping via errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError carrying the code CodeFor derives for err.
func NewExitError(err error) *ExitError {
	return &ExitError{
		Err:  err,
		Code: CodeFor(err),
	}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: suggestion,
	}
}

// Error returns the error message from the underlying error.
// If the underlying error is nil, it returns a generic message with the exit code.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the error chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}
