// Package filestore keeps the input and output tables of enrichment jobs in a
// flat namespace of named blobs.
package filestore

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cadastre-cli/internal/config"
)

// ErrNotFound is matched (via errors.Is) by errors for missing files.
var ErrNotFound = errors.New("file not found")

// Store reads and writes named blobs.
type Store interface {
	Write(ctx context.Context, name string, content []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// StorageError reports a failed file store operation.
type StorageError struct {
	Op   string
	Name string
	Err  error
}

func (e *StorageError) Error() string {
	return "filestore: " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Name: name, Err: err}
}

// IsNotFound reports whether err signals a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// cleanName normalizes a file name to a slash-separated relative path that
// cannot escape the store root.
func cleanName(name string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if cleaned == "" || cleaned == "." {
		return "", eris.Errorf("filestore: invalid file name %q", name)
	}
	return cleaned, nil
}

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		st, err := NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		st, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "ftp":
		return NewFTP(FTPOptions{
			Addr:     cfg.FTP.Addr,
			User:     cfg.FTP.User,
			Password: cfg.FTP.Password,
			Dir:      cfg.FTP.Dir,
			Timeout:  time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
		}), nil
	case "minio":
		st, err := NewMinIO(ctx, MinIOOptions{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			Prefix:    cfg.MinIO.Prefix,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("filestore: unknown driver %q", cfg.Driver)
	}
}
