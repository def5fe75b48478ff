package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cfmgr.pid")
	require.NoError(t, writePidFile(path))

	pid, err := readPidFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	got, running := isProcessRunning(path)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), got)
}

func TestReadPidFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := readPidFile(filepath.Join(dir, "missing.pid"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid\n"), 0644))
	_, err = readPidFile(bad)
	assert.Error(t, err)

	_, running := isProcessRunning(bad)
	assert.False(t, running)
}

func TestDefaultStatePaths(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	assert.Equal(t, filepath.Join(state, "cfmgr"), GetDefaultStateDir())
	assert.Equal(t, filepath.Join(state, "cfmgr", "cfmgr.pid"), GetDefaultPidFile())
	assert.Equal(t, filepath.Join(state, "cfmgr", "cfmgr.log"), GetDefaultLogFile())
}

func TestWaitForExitLiveProcess(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, waitForExit(os.Getpid(), 150*time.Millisecond))
}

func TestDaemonArgs(t *testing.T) {
	prevWatch := watchConfig
	watchConfig = true
	t.Cleanup(func() { watchConfig = prevWatch })

	args := daemonArgs("/tmp/cfmgr.pid")
	assert.Equal(t, []string{"start", "--foreground", "--pid-file", "/tmp/cfmgr.pid"}, args[:4])
	assert.Contains(t, args, "--watch-config")
}
