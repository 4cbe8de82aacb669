//go:build unix

package bash

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the command as the leader of a new process group so
// the whole tree can be killed at once.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
