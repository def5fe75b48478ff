//go:build windows

package commands

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

const stillActive = 259

func processAlive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(h) }()

	var code uint32
	return windows.GetExitCodeProcess(h, &code) == nil && code == stillActive
}

// signalProcess terminates pid. A detached process has no console to
// deliver Ctrl+Break to, so graceful and forced stops are the same.
func signalProcess(pid int, _ bool) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return errProcessDone
	}
	defer func() { _ = windows.CloseHandle(h) }()

	fmt.Printf("Terminating process %d...\n", pid)
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("failed to stop process: %w", err)
	}
	return nil
}

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}
