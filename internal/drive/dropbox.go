package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/dropbox/files"
	"github.com/paddlesteamer/cloudfiles/internal/auth"
)

// Dropbox stores files in the app folder of a dropbox account. The
// access token is scoped to the app folder, so no separate permission
// scopes are required: a session is all it takes to be linked.
type Dropbox struct {
	identity  auth.Identity
	newClient func(token string) files.Client
	client    files.Client
}

// NewDropbox creates a dropbox provider on top of the given identity
// client. No session is established until SignIn.
func NewDropbox(identity auth.Identity) *Dropbox {
	return &Dropbox{
		identity:  identity,
		newClient: newDropboxFilesClient,
	}
}

func newDropboxFilesClient(token string) files.Client {
	return files.New(dropbox.Config{
		Token:    token,
		LogLevel: dropbox.LogOff,
	})
}

// ProviderName returns 'dropbox'
func (d *Dropbox) ProviderName() string {
	return "dropbox"
}

// SignIn establishes a dropbox session through the identity client.
func (d *Dropbox) SignIn(ctx context.Context, surface auth.Surface) error {
	if err := d.identity.SignIn(ctx, surface); err != nil {
		return opError(OpSignIn, err)
	}

	sess, ok := d.identity.Session()
	if !ok || sess.Token == nil || sess.Token.AccessToken == "" {
		return ErrUnknown
	}

	return nil
}

// Authorize only checks for a session: app-folder tokens already carry
// every grant the provider needs, so there is never a consent prompt.
func (d *Dropbox) Authorize(ctx context.Context, surface auth.Surface) error {
	if _, ok := d.identity.Session(); !ok {
		return ErrMissingScopes
	}

	return nil
}

// IsLinked reports whether a session exists.
func (d *Dropbox) IsLinked() bool {
	_, ok := d.identity.Session()

	return ok
}

// Fetch resolves name to metadata inside the app folder.
func (d *Dropbox) Fetch(ctx context.Context, name string) (Metadata, bool, error) {
	client, err := d.files()
	if err != nil {
		return Metadata{}, false, err
	}

	args := &files.GetMetadataArg{
		Path: "/" + name,
	}

	md, err := client.GetMetadata(args)
	if err != nil {
		// no other way to distinguish not found error
		if strings.Contains(err.Error(), "not_found") {
			return Metadata{}, false, nil
		}

		return Metadata{}, false, opError(OpFetch, err)
	}

	fmd, ok := md.(*files.FileMetadata)
	if !ok || fmd.Id == "" || fmd.ServerModified.IsZero() {
		return Metadata{}, false, ErrUnknown
	}

	return Metadata{
		ID:           fmd.Id,
		Size:         int64(fmd.Size),
		LastModified: fmd.ServerModified,
	}, true, nil
}

// Download retrieves the contents of the file with the given id.
func (d *Dropbox) Download(ctx context.Context, id string) ([]byte, error) {
	client, err := d.files()
	if err != nil {
		return nil, err
	}

	args := files.NewDownloadArg(id)

	_, r, err := client.Download(args)
	if err != nil {
		return nil, opError(OpDownload, err)
	}

	if r == nil {
		return nil, ErrUnknown
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, opError(OpDownload, err)
	}

	return data, nil
}

// Upload replaces the named file in the app folder. The previous
// revision, if any, is deleted first.
func (d *Dropbox) Upload(ctx context.Context, name string, data []byte) (UploadResult, error) {
	client, err := d.files()
	if err != nil {
		return UploadResult{}, err
	}

	path := "/" + name

	dargs := files.NewDeleteArg(path)
	if _, err := client.DeleteV2(dargs); err != nil && !strings.Contains(err.Error(), "not_found") {
		return UploadResult{}, opError(OpUpload, fmt.Errorf("couldn't delete file before upload: %v", err))
	}

	uargs := files.NewCommitInfo(path)

	md, err := client.Upload(uargs, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, opError(OpUpload, err)
	}

	if md == nil || md.Id == "" || md.ServerModified.IsZero() {
		return UploadResult{}, ErrUnknown
	}

	return UploadResult{
		Size:         int64(md.Size),
		LastModified: md.ServerModified,
	}, nil
}

// Unlink drops the local session without revoking the token.
func (d *Dropbox) Unlink() {
	d.identity.SignOut()
	d.client = nil
}

// files returns the SDK client, creating it on first authorized use.
func (d *Dropbox) files() (files.Client, error) {
	sess, ok := d.identity.Session()
	if !ok {
		return nil, ErrMissingScopes
	}

	if d.client == nil {
		d.client = d.newClient(sess.Token.AccessToken)
	}

	return d.client, nil
}
