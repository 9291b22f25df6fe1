package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/namelens/ascgate/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
		want string
	}{
		{"remote url gains token", config.StoreConfig{URL: "libsql://journal.turso.io", AuthToken: "tok"}, "libsql://journal.turso.io?authToken=tok"},
		{"remote url keeps query", config.StoreConfig{URL: "libsql://journal.turso.io?tls=1", AuthToken: "tok"}, "libsql://journal.turso.io?authToken=tok&tls=1"},
		{"explicit token wins", config.StoreConfig{URL: "libsql://journal.turso.io?authToken=inline", AuthToken: "tok"}, "libsql://journal.turso.io?authToken=inline"},
		{"url wins over path", config.StoreConfig{URL: "libsql://journal.turso.io", Path: "/tmp/ignored.db"}, "libsql://journal.turso.io"},
		{"memory", config.StoreConfig{Path: ":memory:"}, ":memory:"},
		{"libsql scheme path", config.StoreConfig{Path: "libsql://local"}, "libsql://local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildLibsqlDSN(tt.cfg)
			require.NoError(t, err)
			require.Equal(t, tt.want, dsn)
		})
	}
}

func TestBuildLibsqlDSNCreatesJournalDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "ascgate")

	dsn, err := buildLibsqlDSN(config.StoreConfig{Path: filepath.Join(dir, "journal.db")})
	require.NoError(t, err)
	require.Equal(t, "file:"+filepath.Join(dir, "journal.db"), dsn)
	require.True(t, isLocalDSN(dsn))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestBuildLibsqlDSNFilePrefixCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	dsn, err := buildLibsqlDSN(config.StoreConfig{Path: "file:" + dir + "/journal.db"})
	require.NoError(t, err)
	require.Equal(t, "file:"+dir+"/journal.db", dsn)
	require.DirExists(t, dir)
}

func TestBuildLibsqlDSNRequiresLocation(t *testing.T) {
	_, err := buildLibsqlDSN(config.StoreConfig{Path: "   "})
	require.Error(t, err)
}

func TestIsLocalDSN(t *testing.T) {
	require.True(t, isLocalDSN("file:/var/lib/ascgate/journal.db"))
	require.False(t, isLocalDSN(":memory:"))
	require.False(t, isLocalDSN("libsql://journal.turso.io"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.ErrorContains(t, err, "unsupported store driver")
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Error(t, s.CheckHealth(context.Background()))
	require.Empty(t, s.Driver())
}
