package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/rowstore"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := Config{}
	cfg.ApplyDefaults("main")
	assert.Equal(t, DatabaseTypeSQLite, cfg.Type)
	assert.Equal(t, filepath.Join("/data", "cfmgr", "main.db"), cfg.SQLite.Path)
	require.NotNil(t, cfg.SQLite.ForeignKeys)
	assert.True(t, *cfg.SQLite.ForeignKeys)
	assert.NoError(t, cfg.Validate())

	pg := Config{Type: DatabaseTypePostgres}
	pg.ApplyDefaults("main")
	assert.Equal(t, 5432, pg.Postgres.Port)
	assert.Equal(t, "disable", pg.Postgres.SSLMode)
	assert.Error(t, pg.Validate(), "host is required")

	pg.Postgres.Host = "localhost"
	pg.Postgres.Database = "app"
	pg.Postgres.User = "app"
	assert.NoError(t, pg.Validate())
	assert.Contains(t, pg.Postgres.DSN(), "host=localhost port=5432")
	assert.Contains(t, pg.Postgres.DSN(), "sslmode=disable")

	bad := Config{Type: "oracle"}
	assert.Error(t, bad.Validate())
}

func TestSQLiteDSN(t *testing.T) {
	off := false
	mem := Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: MemoryPath, ForeignKeys: &off}}
	assert.Equal(t, ":memory:?_pragma=busy_timeout(5000)", mem.sqliteDSN())

	file := Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: "/tmp/x.db"}}
	assert.Equal(t, "/tmp/x.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", file.sqliteDSN())
}

func TestRunAndAll(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	_, err := db.Prepare(`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, avatar BLOB, score REAL)`).Run(ctx)
	require.NoError(t, err)

	res, err := db.Prepare(`INSERT INTO users (name, avatar, score) VALUES (?, ?, ?)`).
		Bind("alice", []byte{0x01, 0x02}, 1.5).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Changes)
	assert.Equal(t, int64(1), res.LastRowID)
	assert.Zero(t, res.RowsRead)

	res, err = db.Prepare(`INSERT INTO users (name) VALUES (:name)`).
		BindNamed(map[string]any{"name": "bob"}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LastRowID)

	out, err := db.Prepare(`SELECT id, name, avatar, score FROM users ORDER BY id`).All(ctx)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)

	first := out.Rows[0]
	assert.Equal(t, []string{"id", "name", "avatar", "score"}, first.Columns)
	assert.Equal(t, int64(1), first.Values[0])
	assert.Equal(t, "alice", first.Values[1])
	assert.Equal(t, []byte{0x01, 0x02}, first.Values[2])
	assert.Equal(t, 1.5, first.Values[3])

	assert.Nil(t, out.Rows[1].Values[2])
}

func TestBindDoesNotMutate(t *testing.T) {
	db := openMemory(t)
	base := db.Prepare(`SELECT ?1 AS v`)
	seven := base.Bind(int64(7))
	eight := base.Bind(int64(8))

	out, err := seven.All(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, int64(7), out.Rows[0].Values[0])

	out, err = eight.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(8), out.Rows[0].Values[0])
}

func TestAllEmptyResult(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	_, err := db.Prepare(`CREATE TABLE t (a INTEGER)`).Run(ctx)
	require.NoError(t, err)

	out, err := db.Prepare(`SELECT * FROM t`).All(ctx)
	require.NoError(t, err)
	assert.NotNil(t, out.Rows)
	assert.Empty(t, out.Rows)
}

func TestBatchCommitsAll(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	_, err := db.Prepare(`CREATE TABLE t (a INTEGER UNIQUE)`).Run(ctx)
	require.NoError(t, err)

	results, err := db.Batch(ctx, []rowstore.PreparedStatement{
		db.Prepare(`INSERT INTO t (a) VALUES (1)`),
		db.Prepare(`INSERT INTO t (a) VALUES (?)`).Bind(2),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[1].Changes)

	out, err := db.Prepare(`SELECT COUNT(*) AS n FROM t`).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Rows[0].Values[0])
}

func TestBatchRollsBack(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	_, err := db.Prepare(`CREATE TABLE t (a INTEGER UNIQUE)`).Run(ctx)
	require.NoError(t, err)

	results, err := db.Batch(ctx, []rowstore.PreparedStatement{
		db.Prepare(`INSERT INTO t (a) VALUES (1)`),
		db.Prepare(`INSERT INTO t (a) VALUES (1)`),
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "statement 1")
	assert.Contains(t, err.Error(), "UNIQUE constraint")

	out, err := db.Prepare(`SELECT COUNT(*) AS n FROM t`).All(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Rows[0].Values[0])
}

func TestBatchRejectsForeignStatement(t *testing.T) {
	a := openMemory(t)
	b := openMemory(t)

	_, err := a.Batch(context.Background(), []rowstore.PreparedStatement{b.Prepare(`SELECT 1`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not prepared by this database")
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	_, err := db.Prepare(`CREATE TABLE parent (id INTEGER PRIMARY KEY)`).Run(ctx)
	require.NoError(t, err)
	_, err = db.Prepare(`CREATE TABLE child (pid INTEGER REFERENCES parent(id))`).Run(ctx)
	require.NoError(t, err)

	_, err = db.Prepare(`INSERT INTO child (pid) VALUES (42)`).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint")
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	cfg := Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: path}}
	cfg.ApplyDefaults("app")

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, DatabaseTypeSQLite, db.Type())
	assert.NotNil(t, db.Gorm())
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}
