//go:build integration

package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/cfmgr/pkg/rowstore"
)

func startPostgres(t *testing.T) (Config, string) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cfmgr"),
		postgres.WithUsername("cfmgr"),
		postgres.WithPassword("cfmgr"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "cfmgr",
			User:     "cfmgr",
			Password: "cfmgr",
		},
	}
	cfg.ApplyDefaults("cfmgr")
	return cfg, connStr
}

func TestPostgresBackend(t *testing.T) {
	cfg, connStr := startPostgres(t)
	ctx := context.Background()

	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping(ctx))

	_, err = db.Prepare(`CREATE TABLE items (id SERIAL PRIMARY KEY, name TEXT UNIQUE, payload BYTEA)`).Run(ctx)
	require.NoError(t, err)

	res, err := db.Prepare(`INSERT INTO items (name, payload) VALUES ($1, $2)`).Bind("a", []byte{9}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Changes)

	_, err = db.Batch(ctx, []rowstore.PreparedStatement{
		db.Prepare(`INSERT INTO items (name) VALUES ($1)`).Bind("b"),
		db.Prepare(`INSERT INTO items (name) VALUES ($1)`).Bind("a"),
	})
	require.Error(t, err)

	out, err := db.Prepare(`SELECT name, payload FROM items ORDER BY id`).All(ctx)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "a", out.Rows[0].Values[0])
	assert.Equal(t, []byte{9}, out.Rows[0].Values[1])

	// Verify through an independent pool that the failed batch left nothing behind.
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n))
	assert.Equal(t, 1, n)
}
