package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/config"
	"github.com/marmos91/cfmgr/pkg/rowstore/sqldb"
)

func TestRedactSecrets(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Auth.APIKey = "key"
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Presign.SecretKey = "presign"
	cfg.Databases["pg"] = sqldb.Config{
		Type:     sqldb.DatabaseTypePostgres,
		Postgres: sqldb.PostgresConfig{Host: "db", Password: "hunter2"},
	}
	s3Opts := map[string]any{"bucket": "assets", "access_key_id": "AKIA", "secret_access_key": "shh"}
	cfg.Buckets["s3"] = config.BucketConfig{Type: config.BucketTypeS3, S3: s3Opts}

	redactSecrets(cfg)

	assert.Equal(t, redacted, cfg.Auth.APIKey)
	assert.Equal(t, redacted, cfg.Auth.JWTSecret)
	assert.Empty(t, cfg.Auth.APIKeyHash)
	assert.Equal(t, redacted, cfg.Presign.SecretKey)
	assert.Equal(t, redacted, cfg.Databases["pg"].Postgres.Password)
	assert.Equal(t, "db", cfg.Databases["pg"].Postgres.Host)
	assert.Equal(t, redacted, cfg.Buckets["s3"].S3["secret_access_key"])
	assert.Equal(t, "AKIA", cfg.Buckets["s3"].S3["access_key_id"])

	// The caller's options map is left untouched.
	assert.Equal(t, "shh", s3Opts["secret_access_key"])
}

func TestConfigWarnings(t *testing.T) {
	cfg := config.GetDefaultConfig()
	warnings := configWarnings(cfg)
	assert.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "public")
	assert.Contains(t, warnings[1], "presign.secret_key")

	cfg.Auth.APIKey = "key"
	cfg.Auth.APIKeyHash = "$2a$10$hash"
	cfg.Presign.SecretKey = "secret"
	warnings = configWarnings(cfg)
	assert.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "hash takes precedence")

	cfg.Databases = nil
	cfg.Buckets = nil
	assert.Contains(t, configWarnings(cfg), "No databases or buckets configured")
}

func TestSortedNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedNames(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, sortedNames(map[string]int{}))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestEditConfigReplacesOnValidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server:\n  port: 8080\n")

	err := editConfig(path, func(scratch string) error {
		assert.NotEqual(t, path, scratch)
		writeFile(t, scratch, "server:\n  port: 9100\n")
		return nil
	}, func(error) (bool, error) {
		t.Fatal("valid edit must not ask to reopen")
		return false, nil
	})
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEditConfigRetriesInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server:\n  port: 8080\n")

	edits := []string{"logging:\n  level: LOUD\n", "logging:\n  level: debug\n"}
	var reopened int
	err := editConfig(path, func(scratch string) error {
		writeFile(t, scratch, edits[0])
		edits = edits[1:]
		return nil
	}, func(verr error) (bool, error) {
		reopened++
		assert.Contains(t, verr.Error(), "oneof")
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reopened)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestEditConfigDiscardKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "server:\n  port: 8080\n")

	err := editConfig(path, func(scratch string) error {
		writeFile(t, scratch, "logging:\n  format: xml\n")
		return nil
	}, func(error) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, errEditAborted)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server:\n  port: 8080\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "scratch copy must be removed")
}
