package drive

import (
	"errors"
	"fmt"
)

// Op names the operation a provider failure occurred in. Callers
// branch on it to decide between re-linking and plain reporting.
type Op string

const (
	OpSignIn    Op = "signin"
	OpAuthorize Op = "authorize"
	OpFetch     Op = "fetch"
	OpDownload  Op = "download"
	OpUpload    Op = "upload"
)

var (
	// ErrUnknown is returned when a provider reported success but the
	// response was missing the fields required to build a result.
	ErrUnknown = errors.New("malformed provider response")

	// ErrMissingScopes is returned when an operation that requires
	// authorization is invoked without an active session or with a
	// required permission scope absent. No remote call is attempted.
	ErrMissingScopes = errors.New("no active session or missing permission scopes")
)

// Error wraps a transport or SDK failure tagged with the operation it
// occurred in. The cause is preserved for diagnostics.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op Op, err error) *Error {
	return &Error{Op: op, Err: err}
}
