//go:build !windows

package commands

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// processAlive probes pid with signal 0. EPERM still means it exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// signalProcess sends SIGTERM, or SIGKILL when forced.
func signalProcess(pid int, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	fmt.Printf("Sending %s to process %d...\n", unix.SignalName(sig), pid)

	switch err := unix.Kill(pid, sig); err {
	case nil:
		return nil
	case unix.ESRCH:
		return errProcessDone
	default:
		return fmt.Errorf("failed to send signal: %w", err)
	}
}

// detach starts the daemon in its own session so it survives the shell.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
