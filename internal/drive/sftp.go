package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/paddlesteamer/cloudfiles/internal/auth"
	"github.com/paddlesteamer/cloudfiles/internal/config"
	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// sftpAppDir is the remote directory files live in when the config
// doesn't name one. It plays the role of the application-data area.
const sftpAppDir = ".cloudfiles"

// sftpClient is the part of the sftp surface the provider uses.
// The real implementation wraps *sftp.Client, tests substitute fakes.
type sftpClient interface {
	Stat(path string) (os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
	Close() error
}

// SFTP stores files in a dedicated directory on an ssh server. The
// live connection is the session: there are no permission scopes, so
// being connected means being linked.
type SFTP struct {
	conf   config.SFTPMount
	root   string
	dial   func(conf config.SFTPMount) (sftpClient, error)
	client sftpClient
}

// NewSFTP creates an sftp provider. No connection is established
// until SignIn.
func NewSFTP(conf config.SFTPMount) *SFTP {
	root := conf.Directory
	if root == "" {
		root = sftpAppDir
	}

	return &SFTP{
		conf: conf,
		root: root,
		dial: dialSFTP,
	}
}

// ProviderName returns 'sftp'
func (s *SFTP) ProviderName() string {
	return "sftp"
}

// SignIn connects to the server and makes sure the app directory
// exists. The surface is unused, sftp has no consent screen.
func (s *SFTP) SignIn(ctx context.Context, surface auth.Surface) error {
	log.Debugf("connecting to sftp server %s:%d", s.conf.Host, s.conf.Port)

	client, err := s.dial(s.conf)
	if err != nil {
		return opError(OpSignIn, err)
	}

	if err := client.MkdirAll(s.root); err != nil {
		client.Close()
		return opError(OpSignIn, fmt.Errorf("couldn't create app directory: %v", err))
	}

	s.client = client

	return nil
}

// Authorize only checks for a connection: the server enforces its own
// permissions, there is nothing to prompt for.
func (s *SFTP) Authorize(ctx context.Context, surface auth.Surface) error {
	if s.client == nil {
		return ErrMissingScopes
	}

	return nil
}

// IsLinked reports whether the connection is up.
func (s *SFTP) IsLinked() bool {
	return s.client != nil
}

// Fetch resolves name to metadata inside the app directory.
func (s *SFTP) Fetch(ctx context.Context, name string) (Metadata, bool, error) {
	if s.client == nil {
		return Metadata{}, false, ErrMissingScopes
	}

	p := path.Join(s.root, name)

	fi, err := s.client.Stat(p)
	if os.IsNotExist(err) {
		return Metadata{}, false, nil
	}
	if err != nil {
		return Metadata{}, false, opError(OpFetch, err)
	}

	if fi.IsDir() {
		return Metadata{}, false, ErrUnknown
	}

	return Metadata{
		ID:           p,
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
	}, true, nil
}

// Download retrieves the contents of the file at the given remote path.
func (s *SFTP) Download(ctx context.Context, id string) ([]byte, error) {
	if s.client == nil {
		return nil, ErrMissingScopes
	}

	r, err := s.client.Open(id)
	if err != nil {
		return nil, opError(OpDownload, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, opError(OpDownload, err)
	}

	return data, nil
}

// Upload replaces the named file in the app directory.
func (s *SFTP) Upload(ctx context.Context, name string, data []byte) (UploadResult, error) {
	if s.client == nil {
		return UploadResult{}, ErrMissingScopes
	}

	p := path.Join(s.root, name)

	w, err := s.client.Create(p)
	if err != nil {
		return UploadResult{}, opError(OpUpload, err)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return UploadResult{}, opError(OpUpload, err)
	}

	if err := w.Close(); err != nil {
		return UploadResult{}, opError(OpUpload, err)
	}

	fi, err := s.client.Stat(p)
	if err != nil {
		return UploadResult{}, ErrUnknown
	}

	return UploadResult{
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
	}, nil
}

// Unlink closes the connection.
func (s *SFTP) Unlink() {
	if s.client == nil {
		return
	}

	if err := s.client.Close(); err != nil {
		log.Warningf("couldn't close sftp connection: %v", err)
	}

	s.client = nil
}

func dialSFTP(conf config.SFTPMount) (sftpClient, error) {
	sshConf := &ssh.ClientConfig{
		User:            conf.User,
		Auth:            []ssh.AuthMethod{ssh.Password(conf.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port), sshConf)
	if err != nil {
		return nil, fmt.Errorf("couldn't dial %s:%d: %v", conf.Host, conf.Port, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("couldn't create sftp client: %v", err)
	}

	return &sftpConn{client: client}, nil
}

// sftpConn adapts *sftp.Client to the narrow interface above.
type sftpConn struct {
	client *sftp.Client
}

func (c *sftpConn) Stat(path string) (os.FileInfo, error) {
	return c.client.Stat(path)
}

func (c *sftpConn) Open(path string) (io.ReadCloser, error) {
	return c.client.Open(path)
}

func (c *sftpConn) Create(path string) (io.WriteCloser, error) {
	return c.client.Create(path)
}

func (c *sftpConn) MkdirAll(path string) error {
	return c.client.MkdirAll(path)
}

func (c *sftpConn) Close() error {
	return c.client.Close()
}
