//go:build windows

package process

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// prepareCommand starts the child in its own process group. Windows has no
// group signal, so the tree is walked instead.
func prepareCommand(cmd *exec.Cmd) (detached bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
	return true
}

// signalLeader terminates the leader. Windows offers no graceful equivalent of
// SIGTERM for console-less children, so both modes kill.
func signalLeader(pid int, force bool) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}

// signalGroup terminates the leader and every descendant.
func signalGroup(pid int, force bool) error {
	signalPIDs(context.Background(), Descendants(context.Background(), pid), true)
	return signalLeader(pid, force)
}

