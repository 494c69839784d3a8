//go:build unix

package executor

import (
	osexec "os/exec"
	"syscall"
)

// killGroup runs cmd in its own process group and kills the whole group on cancellation,
// so that processes started by the pipeline script do not outlive it.
func killGroup(cmd *osexec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
