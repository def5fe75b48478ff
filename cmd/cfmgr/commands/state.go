package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	pidFileName = "cfmgr.pid"
	logFileName = "cfmgr.log"
)

// GetDefaultStateDir returns where the daemon keeps its PID and log files:
// %LOCALAPPDATA%\cfmgr on Windows and $XDG_STATE_HOME/cfmgr (default
// ~/.local/state/cfmgr) elsewhere. The temp directory is the last resort.
func GetDefaultStateDir() string {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("LOCALAPPDATA")
	} else if base = os.Getenv("XDG_STATE_HOME"); base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".local", "state")
		}
	}
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "cfmgr")
}

// GetDefaultPidFile returns the PID file used when --pid-file is not set.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), pidFileName)
}

// GetDefaultLogFile returns the file a daemonized server logs to.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), logFileName)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file %s: %q", path, raw)
	}
	return pid, nil
}

// writePidFile records this process in path, creating parent directories.
func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0644)
}
