package drive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
	"github.com/paddlesteamer/cloudfiles/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSftpFileInfo struct {
	name string
	size int64
	mod  time.Time
	dir  bool
}

func (f fakeSftpFileInfo) Name() string       { return f.name }
func (f fakeSftpFileInfo) Size() int64        { return f.size }
func (f fakeSftpFileInfo) Mode() os.FileMode  { return 0644 }
func (f fakeSftpFileInfo) ModTime() time.Time { return f.mod }
func (f fakeSftpFileInfo) IsDir() bool        { return f.dir }
func (f fakeSftpFileInfo) Sys() interface{}   { return nil }

type fakeSftpFile struct {
	buf    bytes.Buffer
	commit func(data []byte)
}

func (f *fakeSftpFile) Write(p []byte) (int, error) { return f.buf.Write(p) }
func (f *fakeSftpFile) Close() error                { f.commit(f.buf.Bytes()); return nil }

type fakeSftpClient struct {
	files map[string][]byte
	mod   map[string]time.Time
	dirs  map[string]bool

	closed bool

	statErr   error
	openErr   error
	createErr error
}

func newFakeSftpClient() *fakeSftpClient {
	return &fakeSftpClient{
		files: map[string][]byte{},
		mod:   map[string]time.Time{},
		dirs:  map[string]bool{},
	}
}

func (f *fakeSftpClient) Stat(path string) (os.FileInfo, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}

	if f.dirs[path] {
		return fakeSftpFileInfo{name: path, dir: true}, nil
	}

	data, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}

	return fakeSftpFileInfo{name: path, size: int64(len(data)), mod: f.mod[path]}, nil
}

func (f *fakeSftpClient) Open(path string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}

	data, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeSftpClient) Create(path string) (io.WriteCloser, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	return &fakeSftpFile{commit: func(data []byte) {
		f.files[path] = data
		f.mod[path] = time.Now()
	}}, nil
}

func (f *fakeSftpClient) MkdirAll(path string) error {
	f.dirs[path] = true
	return nil
}

func (f *fakeSftpClient) Close() error {
	f.closed = true
	return nil
}

func newConnectedSFTP(t *testing.T) (*SFTP, *fakeSftpClient) {
	t.Helper()

	client := newFakeSftpClient()

	s := NewSFTP(config.SFTPMount{Host: "example.com", Port: 22, User: "u"})
	s.dial = func(conf config.SFTPMount) (sftpClient, error) { return client, nil }

	require.NoError(t, s.SignIn(context.Background(), auth.Browser{}))

	return s, client
}

func TestSFTPSignIn(t *testing.T) {
	s, client := newConnectedSFTP(t)

	assert.True(t, s.IsLinked())
	assert.True(t, client.dirs[".cloudfiles"], "app directory must be created on sign-in")
	require.NoError(t, s.Authorize(context.Background(), auth.Browser{}))
}

func TestSFTPSignInDialFailure(t *testing.T) {
	cause := errors.New("connection refused")

	s := NewSFTP(config.SFTPMount{Host: "example.com", Port: 22})
	s.dial = func(conf config.SFTPMount) (sftpClient, error) { return nil, cause }

	err := s.SignIn(context.Background(), auth.Browser{})

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, OpSignIn, derr.Op)
	assert.True(t, errors.Is(err, cause))
	assert.False(t, s.IsLinked())
}

func TestSFTPRequiresConnection(t *testing.T) {
	s := NewSFTP(config.SFTPMount{Host: "example.com", Port: 22})

	err := s.Authorize(context.Background(), auth.Browser{})
	assert.True(t, errors.Is(err, ErrMissingScopes))

	_, _, err = s.Fetch(context.Background(), "notes.txt")
	assert.True(t, errors.Is(err, ErrMissingScopes))

	_, err = s.Download(context.Background(), ".cloudfiles/notes.txt")
	assert.True(t, errors.Is(err, ErrMissingScopes))

	_, err = s.Upload(context.Background(), "notes.txt", []byte("x"))
	assert.True(t, errors.Is(err, ErrMissingScopes))
}

func TestSFTPFetchNotFound(t *testing.T) {
	s, _ := newConnectedSFTP(t)

	_, found, err := s.Fetch(context.Background(), "missing.txt")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSFTPUploadFetchDownload(t *testing.T) {
	s, _ := newConnectedSFTP(t)
	ctx := context.Background()

	content := []byte{0x41, 0x42}

	res, err := s.Upload(ctx, "notes.txt", content)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Size)

	md, found, err := s.Fetch(ctx, "notes.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ".cloudfiles/notes.txt", md.ID)
	assert.Equal(t, int64(2), md.Size)

	data, err := s.Download(ctx, md.ID)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestSFTPCustomDirectory(t *testing.T) {
	client := newFakeSftpClient()

	s := NewSFTP(config.SFTPMount{Host: "example.com", Port: 22, Directory: "backup"})
	s.dial = func(conf config.SFTPMount) (sftpClient, error) { return client, nil }

	ctx := context.Background()
	require.NoError(t, s.SignIn(ctx, auth.Browser{}))

	_, err := s.Upload(ctx, "notes.txt", []byte("x"))
	require.NoError(t, err)

	md, found, err := s.Fetch(ctx, "notes.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "backup/notes.txt", md.ID)
}

func TestSFTPFetchDirectory(t *testing.T) {
	s, client := newConnectedSFTP(t)
	client.dirs[".cloudfiles/notes.txt"] = true

	_, _, err := s.Fetch(context.Background(), "notes.txt")
	assert.True(t, errors.Is(err, ErrUnknown))
}

func TestSFTPTransportErrors(t *testing.T) {
	cause := errors.New("connection reset")

	s, client := newConnectedSFTP(t)
	ctx := context.Background()

	client.statErr = cause
	_, _, err := s.Fetch(ctx, "notes.txt")

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, OpFetch, derr.Op)

	client.openErr = cause
	_, err = s.Download(ctx, ".cloudfiles/notes.txt")
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, OpDownload, derr.Op)

	client.createErr = cause
	_, err = s.Upload(ctx, "notes.txt", []byte("x"))
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, OpUpload, derr.Op)
}

func TestSFTPUnlink(t *testing.T) {
	s, client := newConnectedSFTP(t)

	s.Unlink()

	assert.True(t, client.closed)
	assert.False(t, s.IsLinked())

	_, _, err := s.Fetch(context.Background(), "notes.txt")
	assert.True(t, errors.Is(err, ErrMissingScopes))

	// unlinking twice is fine
	s.Unlink()
}

func TestSFTPProviderName(t *testing.T) {
	s := NewSFTP(config.SFTPMount{})

	assert.Equal(t, "sftp", s.ProviderName())
}
