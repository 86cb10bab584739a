package filestore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalStore keeps files under a directory on disk.
type LocalStore struct {
	root string
}

// NewLocal creates a LocalStore rooted at dir, creating it if needed.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "filestore: create root %s", dir)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Write stores content under name, replacing any previous file atomically.
func (s *LocalStore) Write(_ context.Context, name string, content []byte) error {
	p, err := s.path(name)
	if err != nil {
		return storageErr("write", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return storageErr("write", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return storageErr("write", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return storageErr("write", name, err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("write", name, err)
	}
	return storageErr("write", name, os.Rename(tmp.Name(), p))
}

// Read returns the content stored under name.
func (s *LocalStore) Read(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storageErr("read", name, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	return data, nil
}

// Delete removes the file stored under name.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return storageErr("delete", name, err)
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete", name, ErrNotFound)
	}
	return storageErr("delete", name, err)
}

func (s *LocalStore) Close() error {
	return nil
}
