package filestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps files as blobs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "filestore: sqlite open")
	}
	// Pragmas below are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "filestore: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteFilesMigration = `
CREATE TABLE IF NOT EXISTS files (
	name       TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	size       INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the files table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteFilesMigration)
	return eris.Wrap(err, "filestore: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Write stores content under name, replacing any previous blob.
func (s *SQLiteStore) Write(ctx context.Context, name string, content []byte) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return storageErr("write", name, err)
	}
	if content == nil {
		content = []byte{}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (name, content, size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET content = excluded.content, size = excluded.size, created_at = excluded.created_at`,
		cleaned, content, len(content), time.Now().UTC(),
	)
	return storageErr("write", name, err)
}

// Read returns the blob stored under name.
func (s *SQLiteStore) Read(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := cleanName(name)
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, `SELECT content FROM files WHERE name = ?`, cleaned).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storageErr("read", name, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("read", name, err)
	}
	return content, nil
}

// Delete removes the blob stored under name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	cleaned, err := cleanName(name)
	if err != nil {
		return storageErr("delete", name, err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE name = ?`, cleaned)
	if err != nil {
		return storageErr("delete", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete", name, err)
	}
	if n == 0 {
		return storageErr("delete", name, ErrNotFound)
	}
	return nil
}
