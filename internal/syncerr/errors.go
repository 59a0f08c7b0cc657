// Package syncerr defines the error kinds shared by every sync component
// (spec §7). Call sites wrap a sentinel with fmt.Errorf("...: %w", Err...)
// so errors.Is keeps working through the stack, matching the teacher's use
// of typed errors (notes_service.go's VersionMismatchError/MutationError).
package syncerr

import "errors"

var (
	// ErrAuthRequired: no current user, or an expired/invalid token.
	ErrAuthRequired = errors.New("auth required")
	// ErrSyncCancelled: the client session was invalidated mid-flight.
	ErrSyncCancelled = errors.New("sync cancelled: session invalidated")
	// ErrLockHeld: C2 refused to grant the advisory sync lock.
	ErrLockHeld = errors.New("sync lock held")
	// ErrOwnership: the requested workspace is not owned by the caller.
	ErrOwnership = errors.New("workspace not owned")
	// ErrNetwork: a transient transport-level failure.
	ErrNetwork = errors.New("network error")
	// ErrServer: the server returned a non-2xx, non-conflict response.
	ErrServer = errors.New("server error")
	// ErrDatabase: a local or remote persistence failure.
	ErrDatabase = errors.New("database error")
)

// Code maps an error kind to the wire-level error_code string from spec §6.1.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrLockHeld):
		return "SYNC_IN_PROGRESS"
	case errors.Is(err, ErrOwnership):
		return "WORKSPACE_NOT_OWNED"
	case errors.Is(err, ErrAuthRequired):
		return "AUTH_REQUIRED"
	case errors.Is(err, ErrDatabase):
		return "DATABASE_VERIFICATION_ERROR"
	default:
		return ""
	}
}

// HTTPStatus maps an error kind to the HTTP status code from spec §4.3.6/§6.1.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrLockHeld):
		return 409
	case errors.Is(err, ErrOwnership):
		return 403
	case errors.Is(err, ErrAuthRequired):
		return 401
	default:
		return 500
	}
}
