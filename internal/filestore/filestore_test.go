package filestore

import (
	"context"
	"errors"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cadastre-cli/internal/config"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	st, err := NewLocal(filepath.Join(t.TempDir(), "root"))
	require.NoError(t, err)
	return st
}

// storeContract exercises the behavior every backend must share.
func storeContract(t *testing.T, st Store) {
	ctx := context.Background()
	name := "cadastreapi_tmp_storage/0b7e_out.csv"

	require.NoError(t, st.Write(ctx, name, []byte("id;lat\n1;48.85\n")))

	data, err := st.Read(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "id;lat\n1;48.85\n", string(data))

	// Overwrite replaces content.
	require.NoError(t, st.Write(ctx, name, []byte("replaced")))
	data, err = st.Read(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	require.NoError(t, st.Delete(ctx, name))

	_, err = st.Read(ctx, name)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "read", se.Op)
	assert.Equal(t, name, se.Name)

	err = st.Delete(ctx, name)
	assert.True(t, IsNotFound(err))

	err = st.Write(ctx, "", []byte("x"))
	assert.Error(t, err)
}

func TestLocalStore_Contract(t *testing.T) {
	storeContract(t, newTestLocalStore(t))
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContract(t, newTestSQLiteStore(t))
}

func TestLocalStore_NoTraversal(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(filepath.Join(dir, "root"))
	require.NoError(t, err)

	require.NoError(t, st.Write(context.Background(), "../../escape.csv", []byte("x")))

	_, err = st.Read(context.Background(), "escape.csv")
	require.NoError(t, err, "traversal must be confined to the root")
	assert.NoFileExists(t, filepath.Join(dir, "escape.csv"))
}

func TestSQLiteStore_EmptyContent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, "empty.csv", nil))
	data, err := st.Read(ctx, "empty.csv")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"a/b.csv", "a/b.csv", false},
		{"/a/./b.csv", "a/b.csv", false},
		{"../x.csv", "x.csv", false},
		{`dir\file.csv`, "dir/file.csv", false},
		{"", "", true},
		{"/", "", true},
	}
	for _, tt := range tests {
		got, err := cleanName(tt.in)
		if tt.err {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestStorageError_Message(t *testing.T) {
	err := storageErr("read", "in.csv", ErrNotFound)
	assert.Equal(t, "filestore: read in.csv: file not found", err.Error())
	assert.Nil(t, storageErr("read", "in.csv", nil))
}

func TestMapFTPError(t *testing.T) {
	assert.Nil(t, mapFTPError(nil))

	err := mapFTPError(&textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "No such file"})
	assert.True(t, IsNotFound(err))

	other := &textproto.Error{Code: ftp.StatusNotLoggedIn, Msg: "Login incorrect"}
	assert.False(t, IsNotFound(mapFTPError(other)))
}

func TestParentDirs(t *testing.T) {
	assert.Equal(t, []string{"/srv", "/srv/cadastre"}, parentDirs("/srv/cadastre/in.csv"))
	assert.Empty(t, parentDirs("/in.csv"))
}

func TestNewFTP_Defaults(t *testing.T) {
	st := NewFTP(FTPOptions{Addr: "ftp.example.com"})
	assert.Equal(t, "ftp.example.com:21", st.opts.Addr)
	assert.Equal(t, "anonymous", st.opts.User)
	assert.Equal(t, "/", st.opts.Dir)

	p, err := st.remotePath("folder/a_in.csv")
	require.NoError(t, err)
	assert.Equal(t, "/folder/a_in.csv", p)
}

func TestFTPStore_DialFailure(t *testing.T) {
	st := NewFTP(FTPOptions{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	_, err := st.Read(context.Background(), "x.csv")
	require.Error(t, err)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.False(t, IsNotFound(err))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StorageConfig{Driver: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, st)

	st, err = Open(ctx, config.StorageConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "f.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	st, err = Open(ctx, config.StorageConfig{Driver: "ftp", FTP: config.FTPConfig{Addr: "ftp.example.com"}})
	require.NoError(t, err)
	assert.IsType(t, &FTPStore{}, st)

	_, err = Open(ctx, config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)
}
