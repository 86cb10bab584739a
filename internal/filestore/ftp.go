package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP file store.
type FTPOptions struct {
	Addr     string // host or host:port
	User     string
	Password string
	Dir      string // remote root directory
	Timeout  time.Duration
}

// FTPStore keeps files on an FTP server. Each operation uses its own
// connection.
type FTPStore struct {
	opts FTPOptions
}

// NewFTP creates an FTPStore with the given options.
func NewFTP(opts FTPOptions) *FTPStore {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous@"
	}
	if opts.Dir == "" {
		opts.Dir = "/"
	}
	if _, _, err := net.SplitHostPort(opts.Addr); err != nil {
		opts.Addr = net.JoinHostPort(opts.Addr, "21")
	}
	return &FTPStore{opts: opts}
}

func (s *FTPStore) remotePath(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return path.Join(s.opts.Dir, cleaned), nil
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("filestore: ftp connecting", zap.String("addr", s.opts.Addr))

	conn, err := ftp.Dial(s.opts.Addr, ftp.DialWithTimeout(s.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login(s.opts.User, s.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// Write uploads content to name, creating parent directories as needed.
func (s *FTPStore) Write(ctx context.Context, name string, content []byte) error {
	p, err := s.remotePath(name)
	if err != nil {
		return storageErr("write", name, err)
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return storageErr("write", name, err)
	}
	defer conn.Quit() //nolint:errcheck

	// MakeDir fails when the directory exists; the Stor below reports any
	// real problem.
	for _, dir := range parentDirs(p) {
		_ = conn.MakeDir(dir)
	}

	return storageErr("write", name, mapFTPError(conn.Stor(p, bytes.NewReader(content))))
}

// Read downloads the file stored under name.
func (s *FTPStore) Read(ctx context.Context, name string) ([]byte, error) {
	p, err := s.remotePath(name)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	defer conn.Quit() //nolint:errcheck

	resp, err := conn.Retr(p)
	if err != nil {
		return nil, storageErr("read", name, mapFTPError(err))
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	return data, nil
}

// Delete removes the file stored under name.
func (s *FTPStore) Delete(ctx context.Context, name string) error {
	p, err := s.remotePath(name)
	if err != nil {
		return storageErr("delete", name, err)
	}
	conn, err := s.connect(ctx)
	if err != nil {
		return storageErr("delete", name, err)
	}
	defer conn.Quit() //nolint:errcheck

	return storageErr("delete", name, mapFTPError(conn.Delete(p)))
}

func (s *FTPStore) Close() error {
	return nil
}

// mapFTPError converts a 550 reply into ErrNotFound.
func mapFTPError(err error) error {
	if err == nil {
		return nil
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%s: %w", tpErr.Msg, ErrNotFound)
	}
	return err
}

// parentDirs lists the directories above p, outermost first.
func parentDirs(p string) []string {
	var dirs []string
	for dir := path.Dir(p); dir != "/" && dir != "."; dir = path.Dir(dir) {
		dirs = append([]string{dir}, dirs...)
	}
	return dirs
}
