package apperrors

import "errors"

// Sentinel errors for the complaint workflow. Services wrap these with
// fmt.Errorf("...: %w", Err...) so handlers can map them to HTTP status
// codes with errors.Is instead of matching message strings.
var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown complaint, tracking id or user reference.
	ErrNotFound = errors.New("not found")

	// ErrPermission marks an actor not authorized for the requested action.
	ErrPermission = errors.New("permission denied")

	// ErrInvalidTransition marks an action that is not legal from the
	// complaint's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict marks a lost race between concurrent transitions, or a
	// tracking-id allocation collision after retries are exhausted.
	ErrConflict = errors.New("conflict")

	// ErrInternal marks a storage failure.
	ErrInternal = errors.New("internal error")
)

// IsUserFacing reports whether err carries one of the sentinels that map to a
// 4xx response. Anything else is treated as ErrInternal by the handlers.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConflict)
}
