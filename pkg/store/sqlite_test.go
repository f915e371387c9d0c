package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "crawl", "etags.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) backend {
		return openTestSQLite(t)
	})
}

func TestSQLite_OneRowPerBaseURL(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	baseURL := "https://api.github.com/repos/foo/bar/events"

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, baseURL, 1, `"same"`))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etags.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "https://api.github.com/users/linus/followers", 44, `W/"7e96"`))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Lookup(ctx, "https://api.github.com/users/linus/followers")
	require.NoError(t, err)
	assert.Equal(t, 44, rec.PageNumber)
	assert.Equal(t, `W/"7e96"`, rec.ETag)
}
