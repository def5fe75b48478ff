package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopPidFile string
	stopForce   bool
	stopWait    time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the cfmgr server",
	Long: `Stop a background cfmgr server started with 'cfmgr start'.

The server receives SIGTERM, finishes in-flight requests and closes every
database and bucket. --force sends SIGKILL instead. With --wait the command
returns only once the process has exited.

Examples:
  cfmgr stop
  cfmgr stop --wait 30s
  cfmgr stop --pid-file /var/run/cfmgr.pid --force`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/cfmgr/cfmgr.pid)")
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the server without a graceful shutdown")
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "Wait up to this long for the server to exit")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pid, err := readPidFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("PID file not found: %s\n\nIs the server running?", pidPath)
	}
	if err != nil {
		return err
	}

	err = signalProcess(pid, stopForce)
	switch {
	case errors.Is(err, errProcessDone):
		_ = os.Remove(pidPath)
		fmt.Println("Server already stopped")
		return nil
	case err != nil:
		return err
	}

	if stopWait <= 0 && !stopForce {
		fmt.Println("Shutdown signal sent. Server will stop gracefully.")
		return nil
	}
	if stopWait > 0 && !waitForExit(pid, stopWait) {
		return fmt.Errorf("server (PID %d) still running after %s", pid, stopWait)
	}
	// The server removes its own PID file unless it was killed.
	_ = os.Remove(pidPath)
	fmt.Println("Server stopped")
	return nil
}
