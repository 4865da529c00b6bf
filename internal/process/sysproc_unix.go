//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// prepareCommand places the child in a new process group so the whole tree
// can be signalled at once.
func prepareCommand(cmd *exec.Cmd) (detached bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return true
}

// signalLeader asks only the leader process to stop.
func signalLeader(pid int, force bool) error {
	return ignoreGone(unix.Kill(pid, stopSignal(force)))
}

// signalGroup signals every member of the process group led by pid.
func signalGroup(pid int, force bool) error {
	return ignoreGone(unix.Kill(-pid, stopSignal(force)))
}

func stopSignal(force bool) unix.Signal {
	if force {
		return unix.SIGKILL
	}
	return unix.SIGTERM
}

func ignoreGone(err error) error {
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
