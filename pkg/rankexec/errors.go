package rankexec

import "errors"

// Configuration errors. These are the only failures that cross the service
// boundary; per-candidate network failures are absorbed by the probe engine.
var (
	// ErrNoLink means no node link was supplied.
	ErrNoLink = errors.New("no node link specified")

	// ErrBadLink wraps node link parse failures.
	ErrBadLink = errors.New("invalid node link")

	// ErrNoAddressFile means the candidate list path was missing or
	// unreadable.
	ErrNoAddressFile = errors.New("address list unavailable")

	// ErrBadTimeout means the timeout value did not parse.
	ErrBadTimeout = errors.New("invalid timeout")
)

// ErrorCode maps an error to a process exit code.
func ErrorCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNoLink), errors.Is(err, ErrBadLink),
		errors.Is(err, ErrNoAddressFile), errors.Is(err, ErrBadTimeout):
		return 2
	default:
		return 1
	}
}
