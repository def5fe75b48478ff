package context

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/internal/cli/credentials"
)

func newStore(t *testing.T) *credentials.Store {
	t.Helper()
	store, err := credentials.NewStoreAt(filepath.Join(t.TempDir(), "contexts.json"))
	require.NoError(t, err)
	return store
}

func TestListContexts(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newStore(t)
	require.NoError(t, store.SetContext("local", &credentials.Context{ServerURL: "http://localhost:8080", APIKey: "k"}))
	require.NoError(t, store.SetContext("prod", &credentials.Context{
		ServerURL: "https://cfmgr.example.com",
		Token:     "t",
		ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.SetContext("public", &credentials.Context{ServerURL: "http://public:8080"}))

	contexts := listContexts(store, now)
	require.Len(t, contexts, 3)

	assert.Equal(t, "local", contexts[0].Name)
	assert.True(t, contexts[0].Current)
	assert.Equal(t, "api-key", contexts[0].Auth)
	assert.Equal(t, "-", contexts[0].Expires)
	assert.Nil(t, contexts[0].ExpiresAt)

	assert.Equal(t, "prod", contexts[1].Name)
	assert.False(t, contexts[1].Current)
	assert.Equal(t, "token", contexts[1].Auth)
	assert.Equal(t, "expired", contexts[1].Expires)
	require.NotNil(t, contexts[1].ExpiresAt)

	assert.Equal(t, "none", contexts[2].Auth)

	rows := contexts.Rows()
	assert.Equal(t, []string{"*", "local", "http://localhost:8080", "api-key", "-"}, rows[0])
	assert.Len(t, contexts.Headers(), len(rows[0]))
}

func TestRenameContext(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SetContext("localhost-8080", &credentials.Context{ServerURL: "http://localhost:8080"}))
	require.NoError(t, store.SetContext("other", &credentials.Context{ServerURL: "http://other:8080"}))

	require.NoError(t, renameContext(store, "localhost-8080", "dev"))
	assert.Equal(t, "dev", store.GetCurrentContextName())
	assert.Equal(t, []string{"dev", "other"}, store.ListContexts())

	ctx, err := store.GetContext("dev")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL)

	require.NoError(t, renameContext(store, "other", "staging"))
	assert.Equal(t, "dev", store.GetCurrentContextName())
}

func TestRenameContextErrors(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SetContext("a", &credentials.Context{ServerURL: "http://a"}))
	require.NoError(t, store.SetContext("b", &credentials.Context{ServerURL: "http://b"}))

	err := renameContext(store, "missing", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = renameContext(store, "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, renameContext(store, "a", "a"))
}

func TestCurrentContext(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newStore(t)

	_, err := currentContext(store, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no current context")

	require.NoError(t, store.SetContext("local", &credentials.Context{ServerURL: "http://localhost:8080", APIKey: "k"}))
	info, err := currentContext(store, now)
	require.NoError(t, err)
	assert.Equal(t, "local", info.Name)
	assert.True(t, info.Current)
	assert.Equal(t, "api-key", info.Auth)
}
