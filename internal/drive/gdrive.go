package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GDriveScopes are the two permission scopes the gdrive provider
// needs: access to files the app created or opened, and access to the
// private application-data area uploads go to. Both must be granted
// for the account to count as linked.
var GDriveScopes = []string{drive.DriveFileScope, drive.DriveAppdataScope}

const appDataSpace = "appDataFolder"

// filesAPI is the part of the Drive files surface the provider uses.
// The real implementation wraps *drive.Service, tests substitute fakes.
type filesAPI interface {
	ListFiles(ctx context.Context, query string) ([]*drive.File, error)
	DownloadFile(ctx context.Context, id string) (io.ReadCloser, error)
	CreateFile(ctx context.Context, name string, content io.Reader) (*drive.File, error)
	DeleteFile(ctx context.Context, id string) error
}

// GDrive stores files in the application-data area of a google drive
// account. Files there aren't visible in the user's drive browser.
type GDrive struct {
	identity auth.Identity
	api      filesAPI
}

// NewGDrive creates a gdrive provider on top of the given identity
// client. No session is established until SignIn.
func NewGDrive(identity auth.Identity) *GDrive {
	return &GDrive{identity: identity}
}

// ProviderName returns 'gdrive'
func (g *GDrive) ProviderName() string {
	return "gdrive"
}

// SignIn establishes a google session through the identity client.
func (g *GDrive) SignIn(ctx context.Context, surface auth.Surface) error {
	if err := g.identity.SignIn(ctx, surface); err != nil {
		return opError(OpSignIn, err)
	}

	sess, ok := g.identity.Session()
	if !ok || sess.Token == nil || sess.Token.AccessToken == "" {
		return ErrUnknown
	}

	return nil
}

// Authorize makes sure both required scopes are granted, prompting on
// the surface for the missing ones. Repeated calls with sufficient
// scopes succeed without a consent prompt.
func (g *GDrive) Authorize(ctx context.Context, surface auth.Surface) error {
	sess, ok := g.identity.Session()
	if !ok {
		return ErrMissingScopes
	}

	if sess.HasScopes(GDriveScopes...) {
		return nil
	}

	if err := g.identity.RequestScopes(ctx, surface, GDriveScopes...); err != nil {
		return opError(OpAuthorize, err)
	}

	// the user may have unchecked a scope on the consent screen
	sess, ok = g.identity.Session()
	if !ok || !sess.HasScopes(GDriveScopes...) {
		return opError(OpAuthorize, fmt.Errorf("granted scopes are still incomplete"))
	}

	return nil
}

// IsLinked reports whether a session exists and both required scopes
// are granted. Computed fresh on every call, never cached.
func (g *GDrive) IsLinked() bool {
	sess, ok := g.identity.Session()

	return ok && sess.HasScopes(GDriveScopes...)
}

// Fetch resolves name to metadata in the application-data area. Only
// id, size and modifiedTime are requested to keep the response small.
func (g *GDrive) Fetch(ctx context.Context, name string) (Metadata, bool, error) {
	api, err := g.service(ctx)
	if err != nil {
		return Metadata{}, false, err
	}

	files, err := api.ListFiles(ctx, fmt.Sprintf("name='%s' and trashed=false", name))
	if err != nil {
		return Metadata{}, false, opError(OpFetch, err)
	}

	if len(files) == 0 {
		return Metadata{}, false, nil
	}

	if len(files) > 1 {
		log.Warningf("%d files named '%s' in the app data area, using the first", len(files), name)
	}

	md, err := fileMetadata(files[0])
	if err != nil {
		return Metadata{}, false, err
	}

	return md, true, nil
}

// Download retrieves the contents of the file with the given id.
func (g *GDrive) Download(ctx context.Context, id string) ([]byte, error) {
	api, err := g.service(ctx)
	if err != nil {
		return nil, err
	}

	r, err := api.DownloadFile(ctx, id)
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

// Upload replaces the named file in the application-data area. The
// previous revision, if any, is deleted first since Drive allows
// several files with the same name.
func (g *GDrive) Upload(ctx context.Context, name string, data []byte) (UploadResult, error) {
	api, err := g.service(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	files, err := api.ListFiles(ctx, fmt.Sprintf("name='%s' and trashed=false", name))
	if err != nil {
		return UploadResult{}, opError(OpUpload, err)
	}

	for _, f := range files {
		if err := api.DeleteFile(ctx, f.Id); err != nil && !isNotFound(err) {
			return UploadResult{}, opError(OpUpload, err)
		}
	}

	f, err := api.CreateFile(ctx, name, bytes.NewReader(data))
	if err != nil {
		return UploadResult{}, opError(OpUpload, err)
	}

	md, err := fileMetadata(f)
	if err != nil {
		return UploadResult{}, err
	}

	return UploadResult{Size: md.Size, LastModified: md.LastModified}, nil
}

// Unlink drops the local session. Grants on the google account stay
// in place.
func (g *GDrive) Unlink() {
	g.identity.SignOut()
	g.api = nil
}

// service returns the transport, creating it on first authorized use.
// Every remote operation goes through here so the missing-scopes check
// happens before any call is attempted.
func (g *GDrive) service(ctx context.Context) (filesAPI, error) {
	sess, ok := g.identity.Session()
	if !ok || !sess.HasScopes(GDriveScopes...) {
		return nil, ErrMissingScopes
	}

	if g.api != nil {
		return g.api, nil
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(sess.Token))

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("couldn't create gdrive service: %v", err)
	}

	g.api = &gdriveAPI{srv: srv}

	return g.api, nil
}

func fileMetadata(f *drive.File) (Metadata, error) {
	if f == nil || f.Id == "" || f.ModifiedTime == "" {
		return Metadata{}, ErrUnknown
	}

	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		return Metadata{}, ErrUnknown
	}

	return Metadata{
		ID:           f.Id,
		Size:         f.Size,
		LastModified: modified,
	}, nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error

	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// gdriveAPI is the filesAPI implementation backed by the Drive REST
// service.
type gdriveAPI struct {
	srv *drive.Service
}

func (a *gdriveAPI) ListFiles(ctx context.Context, query string) ([]*drive.File, error) {
	res, err := a.srv.Files.List().Context(ctx).
		Spaces(appDataSpace).PageSize(10).
		Q(query).Fields("files(id, size, modifiedTime)").Do()
	if err != nil {
		return nil, err
	}

	return res.Files, nil
}

func (a *gdriveAPI) DownloadFile(ctx context.Context, id string) (io.ReadCloser, error) {
	res, err := a.srv.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, err
	}

	return res.Body, nil
}

func (a *gdriveAPI) CreateFile(ctx context.Context, name string, content io.Reader) (*drive.File, error) {
	f := &drive.File{
		Name:    name,
		Parents: []string{appDataSpace},
	}

	return a.srv.Files.Create(f).Context(ctx).
		Media(content, googleapi.ContentType("application/octet-stream")).
		Fields("id, size, modifiedTime").Do()
}

func (a *gdriveAPI) DeleteFile(ctx context.Context, id string) error {
	return a.srv.Files.Delete(id).Context(ctx).Do()
}
