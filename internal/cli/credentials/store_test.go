package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIsExpired(t *testing.T) {
	tests := []struct {
		name     string
		ctx      Context
		expected bool
	}{
		{
			name:     "token expired in past",
			ctx:      Context{Token: "t", ExpiresAt: time.Now().Add(-1 * time.Hour)},
			expected: true,
		},
		{
			name:     "token expires soon (within 60s)",
			ctx:      Context{Token: "t", ExpiresAt: time.Now().Add(30 * time.Second)},
			expected: true,
		},
		{
			name:     "token not expired",
			ctx:      Context{Token: "t", ExpiresAt: time.Now().Add(2 * time.Hour)},
			expected: false,
		},
		{
			name:     "token without expiry",
			ctx:      Context{Token: "t"},
			expected: false,
		},
		{
			name:     "api key never expires",
			ctx:      Context{APIKey: "k", ExpiresAt: time.Now().Add(-1 * time.Hour)},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.ctx.IsExpired())
		})
	}
}

func TestContextHasCredentials(t *testing.T) {
	ctx := &Context{ServerURL: "http://localhost:8080"}
	assert.False(t, ctx.HasCredentials())

	ctx.APIKey = "key"
	assert.True(t, ctx.HasCredentials())

	ctx = &Context{Token: "token"}
	assert.True(t, ctx.HasCredentials())
}

func TestNewStoreUsesXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	store, err := NewStore()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, DefaultConfigDir, ConfigFileName), store.ConfigPath())
}

func TestStoreOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.json")
	store, err := NewStoreAt(path)
	require.NoError(t, err)

	_, err = store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
	assert.Empty(t, store.ListContexts())

	// The first context becomes current.
	require.NoError(t, store.SetContext("local", &Context{ServerURL: "http://localhost:8080", APIKey: "k1"}))
	assert.Equal(t, "local", store.GetCurrentContextName())

	require.NoError(t, store.SetContext("prod", &Context{ServerURL: "https://prod:8443", Token: "t"}))
	assert.Equal(t, "local", store.GetCurrentContextName())
	assert.Equal(t, []string{"local", "prod"}, store.ListContexts())

	require.NoError(t, store.UseContext("prod"))
	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "https://prod:8443", current.ServerURL)

	err = store.UseContext("nonexistent")
	assert.ErrorIs(t, err, ErrContextNotFound)

	// Reopening reads what was saved.
	reopened, err := NewStoreAt(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", reopened.GetCurrentContextName())
	local, err := reopened.GetContext("local")
	require.NoError(t, err)
	assert.Equal(t, "k1", local.APIKey)

	require.NoError(t, store.DeleteContext("prod"))
	assert.Empty(t, store.GetCurrentContextName())
	assert.ErrorIs(t, store.DeleteContext("prod"), ErrContextNotFound)
}

func TestStoreRenameContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.json")
	store, err := NewStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.SetContext("local", &Context{ServerURL: "http://localhost:8080"}))
	require.NoError(t, store.SetContext("prod", &Context{ServerURL: "https://prod"}))

	require.NoError(t, store.RenameContext("local", "dev"))
	assert.Equal(t, "dev", store.GetCurrentContextName())
	assert.Equal(t, []string{"dev", "prod"}, store.ListContexts())

	assert.ErrorIs(t, store.RenameContext("dev", "prod"), ErrContextExists)
	assert.ErrorIs(t, store.RenameContext("missing", "x"), ErrContextNotFound)
	assert.NoError(t, store.RenameContext("prod", "prod"))

	reopened, err := NewStoreAt(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, reopened.ListContexts())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestStoreClearCurrentContext(t *testing.T) {
	store, err := NewStoreAt(filepath.Join(t.TempDir(), "contexts.json"))
	require.NoError(t, err)

	require.NoError(t, store.SetContext("local", &Context{
		ServerURL: "http://localhost:8080",
		Token:     "token",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.ClearCurrentContext())

	current, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", current.ServerURL)
	assert.False(t, current.HasCredentials())
	assert.True(t, current.ExpiresAt.IsZero())
}

func TestStoreFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contexts.json")
	store, err := NewStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.SetContext("local", &Context{ServerURL: "http://localhost:8080", APIKey: "secret"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePermissions), info.Mode().Perm())
}

func TestNewStoreAtRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStoreAt(path)
	assert.Error(t, err)
}

func TestGenerateContextName(t *testing.T) {
	assert.Equal(t, "localhost-8080", GenerateContextName("http://localhost:8080"))
	assert.Equal(t, "api.example.com", GenerateContextName("https://API.example.com/"))
	assert.Equal(t, "default", GenerateContextName("not a url"))
	assert.Equal(t, "default", GenerateContextName(""))
}
