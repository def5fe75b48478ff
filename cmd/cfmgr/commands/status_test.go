package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cfmgr/pkg/apiclient"
)

func readyServer(t *testing.T, status int, body string) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health/ready", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL)
}

func TestCheckStatusHealthy(t *testing.T) {
	client := readyServer(t, http.StatusOK,
		`{"success":true,"data":{"status":"healthy","service":"cfmgr","version":"1.2.0","timestamp":"2026-01-15T10:00:00Z"}}`)

	status := checkStatus(filepath.Join(t.TempDir(), "missing.pid"), client)
	assert.True(t, status.Running)
	assert.True(t, status.Healthy)
	assert.Zero(t, status.PID)
	assert.Equal(t, "1.2.0", status.Version)
	assert.Nil(t, status.Failing)
	assert.Equal(t, "Server is running and healthy", status.Message)
}

func TestCheckStatusUnhealthy(t *testing.T) {
	client := readyServer(t, http.StatusServiceUnavailable,
		`{"success":false,"data":{"status":"unhealthy","service":"cfmgr","timestamp":"2026-01-15T10:00:00Z",`+
			`"databases":{"main":"database is closed"},"buckets":{"assets":"unreachable"}}}`)

	status := checkStatus(filepath.Join(t.TempDir(), "missing.pid"), client)
	assert.True(t, status.Running)
	assert.False(t, status.Healthy)
	assert.Equal(t, map[string]string{
		"database/main": "database is closed",
		"bucket/assets": "unreachable",
	}, status.Failing)
	assert.Contains(t, status.Message, "2 store(s) failing")
}

func TestCheckStatusStopped(t *testing.T) {
	client := apiclient.New("http://127.0.0.1:1")

	status := checkStatus(filepath.Join(t.TempDir(), "missing.pid"), client)
	assert.False(t, status.Running)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Server is not running", status.Message)
}

func TestCheckStatusProcessWithoutAPI(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "cfmgr.pid")
	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644))

	status := checkStatus(pidPath, apiclient.New("http://127.0.0.1:1"))
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Message, "health check failed")
}
