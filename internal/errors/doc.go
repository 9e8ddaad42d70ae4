// Package errors provides the exit-code contract for the cfgsnap CLI.
//
// The core packages return structured error kinds as sentinel errors
// (see internal/store and internal/rollback); this package maps those
// kinds to distinct process exit codes so scripts can branch on the
// failure class without parsing messages.
//
// # Exit Codes
//
//   - ExitSuccess (0): command completed successfully
//   - ExitUser (1): invalid input, flags, or configuration
//   - ExitSystem (2): storage or write-target unavailable
//   - ExitNoSnapshots (3): identity has no snapshots to restore
//   - ExitVersionNotFound (4): the requested version does not exist
//   - ExitCorrupt (5): snapshot failed integrity verification
//   - ExitConflict (6): lost a version race after bounded retries
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and optional
// suggestion. It supports error unwrapping via [errors.Unwrap]:
//
//	var exitErr *cliErrors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
