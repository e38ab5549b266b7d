// Package manager exposes the provider-agnostic cloud files manager:
// one provider, one remote file, both fixed at construction time.
package manager

import (
	"context"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
	"github.com/paddlesteamer/cloudfiles/internal/config"
	"github.com/paddlesteamer/cloudfiles/internal/drive"
)

// Manager binds the provider contract to a single remote file. It has
// no state of its own: sessions and tokens live in the provider's
// identity client. Callers must serialize operations on one instance.
type Manager struct {
	provider drive.Provider
	file     string
}

// New creates a manager for an already constructed provider.
func New(provider drive.Provider, file string) *Manager {
	return &Manager{
		provider: provider,
		file:     file,
	}
}

// NewGDrive creates a manager backed by the application-data area of
// a google drive account.
func NewGDrive(creds *config.GDriveCredentials, file string) *Manager {
	identity := auth.NewGoogleIdentity(creds.APIKey, creds.ClientID, drive.GDriveScopes...)

	return New(drive.NewGDrive(identity), file)
}

// NewDropbox creates a manager backed by the app folder of a dropbox
// account.
func NewDropbox(creds *config.DropboxCredentials, file string) *Manager {
	identity := auth.NewDropboxIdentity(creds.AppKey)

	return New(drive.NewDropbox(identity), file)
}

// NewSFTP creates a manager backed by a directory on an ssh server.
func NewSFTP(conf *config.SFTPMount, file string) *Manager {
	return New(drive.NewSFTP(*conf), file)
}

// ProviderName returns the name of the backing provider.
func (m *Manager) ProviderName() string {
	return m.provider.ProviderName()
}

// SignIn establishes the provider session.
func (m *Manager) SignIn(ctx context.Context, surface auth.Surface) error {
	return m.provider.SignIn(ctx, surface)
}

// Authorize ensures the session carries every required scope.
func (m *Manager) Authorize(ctx context.Context, surface auth.Surface) error {
	return m.provider.Authorize(ctx, surface)
}

// IsLinked reports whether the account is linked. Pure query, never fails.
func (m *Manager) IsLinked() bool {
	return m.provider.IsLinked()
}

// Fetch returns the managed file's metadata. A file that doesn't exist
// yet is not an error: found is false and err is nil.
func (m *Manager) Fetch(ctx context.Context) (md drive.Metadata, found bool, err error) {
	return m.provider.Fetch(ctx, m.file)
}

// Download retrieves file contents by the identifier Fetch returned.
func (m *Manager) Download(ctx context.Context, id string) ([]byte, error) {
	return m.provider.Download(ctx, id)
}

// Upload replaces the managed file's contents.
func (m *Manager) Upload(ctx context.Context, data []byte) (drive.UploadResult, error) {
	return m.provider.Upload(ctx, m.file, data)
}

// Unlink terminates the local session. A new SignIn restarts the cycle.
func (m *Manager) Unlink() {
	m.provider.Unlink()
}
