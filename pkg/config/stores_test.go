package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/objectstore"
	"github.com/marmos91/cfmgr/pkg/rowstore"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

func TestCreateRowStore(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Databases: map[string]sqldb.Config{
		"main":  {Type: sqldb.DatabaseTypeSQLite, SQLite: sqldb.SQLiteConfig{Path: filepath.Join(dir, "main.db")}},
		"cache": {Type: sqldb.DatabaseTypeSQLite, SQLite: sqldb.SQLiteConfig{Path: sqldb.MemoryPath}},
	}}

	mgr, err := CreateRowStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	assert.Equal(t, []string{"cache", "main"}, mgr.ListInstances())

	res, err := mgr.Execute(context.Background(), "main", "CREATE TABLE t (id INTEGER PRIMARY KEY)", rowstore.Params{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.FileExists(t, filepath.Join(dir, "main.db"))
}

func TestCreateRowStore_OpenFailure(t *testing.T) {
	cfg := &Config{Databases: map[string]sqldb.Config{
		"bad": {Type: "oracle"},
	}}

	_, err := CreateRowStore(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `open database "bad"`)
}

func TestCreateObjectStore(t *testing.T) {
	cfg := &Config{Buckets: map[string]BucketConfig{
		"assets":  {Type: BucketTypeMemory, Memory: map[string]any{"max_object_size": "4"}},
		"archive": {Type: BucketTypeBadger, Badger: map[string]any{"in_memory": true}},
	}}

	mgr, err := CreateObjectStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	assert.Equal(t, []string{"archive", "assets"}, mgr.ListBuckets())

	ctx := context.Background()
	res, err := mgr.Upload(ctx, "archive", "a.txt", []byte("hello"), objectstore.UploadOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)

	// The memory bucket enforces its configured size limit.
	res, err = mgr.Upload(ctx, "assets", "a.txt", []byte("hello"), objectstore.UploadOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestCreateObjectStore_InvalidBucket(t *testing.T) {
	cfg := &Config{Buckets: map[string]BucketConfig{
		"archive": {Type: BucketTypeBadger},
	}}

	_, err := CreateObjectStore(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `create bucket "archive"`)
}
