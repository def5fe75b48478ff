package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

var errProcessDone = errors.New("process already finished")

// isProcessRunning returns the PID in pidPath when that process is alive.
func isProcessRunning(pidPath string) (int, bool) {
	pid, err := readPidFile(pidPath)
	if err != nil || !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// waitForExit polls pid until it exits or timeout elapses.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
	return true
}

// startDaemon re-runs "cfmgr start --foreground" detached from the
// terminal, appending its output to the daemon log file.
func startDaemon() error {
	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("cfmgr is already running (PID %d)\nUse 'cfmgr stop' to stop the running instance", pid)
	}
	_ = os.Remove(pidPath)

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}
	if err := os.MkdirAll(GetDefaultStateDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	logOut, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logOut.Close() }()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate cfmgr executable: %w", err)
	}

	cmd := exec.Command(self, daemonArgs(pidPath)...)
	cmd.Stdout, cmd.Stderr = logOut, logOut
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = cmd.Process.Release()

	fmt.Printf("cfmgr started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'cfmgr status' to check the server and 'cfmgr stop' to stop it")
	return nil
}

func daemonArgs(pidPath string) []string {
	args := []string{"start", "--foreground", "--pid-file", pidPath}
	if path := GetConfigFile(); path != "" {
		args = append(args, "--config", path)
	}
	if watchConfig {
		args = append(args, "--watch-config")
	}
	return args
}
