package cmdutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/internal/cli/credentials"
	"github.com/marmos91/cfmgr/internal/cli/output"
	"github.com/marmos91/cfmgr/pkg/envelope"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single item", "users", []string{"users"}},
		{"multiple items", "users,posts,tags", []string{"users", "posts", "tags"}},
		{"items with spaces", "users, posts , tags", []string{"users", "posts", "tags"}},
		{"empty items filtered out", "users,,posts,", []string{"users", "posts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCommaSeparatedList(tt.input))
		})
	}
}

func TestParseKeyValues(t *testing.T) {
	got, err := ParseKeyValues([]string{"owner=alice", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"owner": "alice", "note": "a=b", "empty": ""}, got)

	got, err = ParseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseKeyValues([]string{"novalue"})
	assert.Error(t, err)

	_, err = ParseKeyValues([]string{"=value"})
	assert.Error(t, err)
}

func TestBoolToYesNo(t *testing.T) {
	if got := BoolToYesNo(true); got != "yes" {
		t.Errorf("BoolToYesNo(true) = %q, want %q", got, "yes")
	}
	if got := BoolToYesNo(false); got != "no" {
		t.Errorf("BoolToYesNo(false) = %q, want %q", got, "no")
	}
}

func TestEmptyOr(t *testing.T) {
	assert.Equal(t, "-", EmptyOr("", "-"))
	assert.Equal(t, "text/plain", EmptyOr("text/plain", "-"))
}

// withFlags resets the global flags and the credential store for one test.
func withFlags(t *testing.T, flags GlobalFlags) *credentials.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contexts.json")
	store, err := credentials.NewStoreAt(path)
	require.NoError(t, err)

	prevFlags, prevOpen := *Flags, openStore
	*Flags = flags
	openStore = func() (*credentials.Store, error) { return credentials.NewStoreAt(path) }
	t.Cleanup(func() {
		*Flags = prevFlags
		openStore = prevOpen
	})
	return store
}

// keyServer answers ListDatabases and records the credentials it saw.
func keyServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"databases":["main"]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestGetAuthenticatedClientFromFlags(t *testing.T) {
	srv, seen := keyServer(t)
	withFlags(t, GlobalFlags{ServerURL: srv.URL, APIKey: "flag-key"})

	client, err := GetAuthenticatedClient()
	require.NoError(t, err)
	assert.Equal(t, srv.URL, client.BaseURL())

	_, err = client.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, "flag-key", seen.Get("X-API-Key"))
}

func TestGetAuthenticatedClientFromContext(t *testing.T) {
	srv, seen := keyServer(t)
	store := withFlags(t, GlobalFlags{})
	require.NoError(t, store.SetContext("local", &credentials.Context{ServerURL: srv.URL, Token: "stored-token"}))

	client, err := GetAuthenticatedClient()
	require.NoError(t, err)

	_, err = client.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, "Bearer stored-token", seen.Get("Authorization"))
	assert.Empty(t, seen.Get("X-API-Key"))
}

func TestGetAuthenticatedClientFlagOverridesContext(t *testing.T) {
	srv, seen := keyServer(t)
	store := withFlags(t, GlobalFlags{APIKey: "override"})
	require.NoError(t, store.SetContext("local", &credentials.Context{ServerURL: srv.URL, Token: "stored-token"}))

	client, err := GetAuthenticatedClient()
	require.NoError(t, err)

	_, err = client.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, "override", seen.Get("X-API-Key"))
	assert.Empty(t, seen.Get("Authorization"))
}

func TestGetAuthenticatedClientNotLoggedIn(t *testing.T) {
	withFlags(t, GlobalFlags{})

	_, err := GetAuthenticatedClient()
	assert.ErrorIs(t, err, credentials.ErrNotLoggedIn)
}

func TestGetAuthenticatedClientPublicServer(t *testing.T) {
	withFlags(t, GlobalFlags{ServerURL: "http://localhost:8080"})

	client, err := GetAuthenticatedClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", client.BaseURL())
}

func TestGetAuthenticatedClientExpiredToken(t *testing.T) {
	store := withFlags(t, GlobalFlags{})
	require.NoError(t, store.SetContext("local", &credentials.Context{
		ServerURL: "http://localhost:8080",
		Token:     "old",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err := GetAuthenticatedClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPrintOutput(t *testing.T) {
	withFlags(t, GlobalFlags{Output: "table"})

	table := output.NewTableData("NAME")
	table.AddRow("main")

	var buf bytes.Buffer
	require.NoError(t, PrintOutput(&buf, []string{"main"}, true, "No databases.", table))
	assert.Equal(t, "No databases.\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintOutput(&buf, []string{"main"}, false, "No databases.", table))
	assert.Contains(t, buf.String(), "main")

	Flags.Output = "json"
	buf.Reset()
	require.NoError(t, PrintOutput(&buf, []string{"main"}, false, "", table))
	assert.JSONEq(t, `["main"]`, buf.String())

	Flags.Output = "xml"
	assert.Error(t, PrintOutput(&buf, nil, true, "", table))
}

func TestPrintEnvelope(t *testing.T) {
	withFlags(t, GlobalFlags{Output: "json"})

	res := envelope.OK(map[string]int{"changes": 2}, &envelope.Meta{DurationMs: 1.5})

	var buf bytes.Buffer
	require.NoError(t, PrintEnvelopeWithSuccess(&buf, res, "done"))
	assert.JSONEq(t, `{"success":true,"data":{"changes":2},"meta":{"duration_ms":1.5}}`, buf.String())

	Flags.Output = "table"
	Flags.NoColor = true
	buf.Reset()
	require.NoError(t, PrintEnvelopeWithSuccess(&buf, res, "done"))
	assert.Equal(t, "done\n(1.50 ms)\n", buf.String())
}

func TestCompleteDatabases(t *testing.T) {
	srv, _ := keyServer(t)
	withFlags(t, GlobalFlags{ServerURL: srv.URL, APIKey: "k"})

	got, directive := CompleteDatabases(nil, nil, "ma")
	assert.Equal(t, []string{"main"}, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	got, _ = CompleteDatabases(nil, nil, "x")
	assert.Empty(t, got)

	got, directive = CompleteDatabases(nil, []string{"main"}, "")
	assert.Nil(t, got)
	assert.Equal(t, cobra.ShellCompDirectiveDefault, directive)
}
