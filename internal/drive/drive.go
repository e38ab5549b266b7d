package drive

import (
	"context"
	"time"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
)

// Metadata is the current state of a remote file. The ID is the
// provider's identifier for the file; providers index by identifier,
// not by name, so every by-id operation needs a Fetch first.
type Metadata struct {
	ID           string
	Size         int64
	LastModified time.Time
}

// UploadResult is the remote state of a file right after an upload.
type UploadResult struct {
	Size         int64
	LastModified time.Time
}

// Provider is the common contract all storage backends implement.
//
// Operations aren't safe for concurrent use on a single provider
// instance unless the backend SDK documents otherwise. Callers are
// expected to serialize.
type Provider interface {
	ProviderName() string

	// SignIn establishes an identity session, presenting consent
	// screens on the provided surface.
	SignIn(ctx context.Context, surface auth.Surface) error

	// Authorize ensures the session carries every scope the provider
	// requires, prompting for the missing ones. It is idempotent:
	// when the scopes are already granted it succeeds without a
	// remote call. Without a session it fails with ErrMissingScopes.
	Authorize(ctx context.Context, surface auth.Surface) error

	// IsLinked reports whether a session exists and every required
	// scope has been granted. It never fails and performs no I/O.
	IsLinked() bool

	// Fetch resolves a file name to its metadata. A missing file is
	// not an error: found is false and err is nil.
	Fetch(ctx context.Context, name string) (md Metadata, found bool, err error)

	// Download retrieves the contents of the file with the given
	// identifier, as returned by Fetch.
	Download(ctx context.Context, id string) ([]byte, error)

	// Upload replaces the named file's contents.
	Upload(ctx context.Context, name string, data []byte) (UploadResult, error)

	// Unlink terminates the local session. It always succeeds and
	// doesn't revoke grants on the provider side.
	Unlink()
}
