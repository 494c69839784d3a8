//go:build !unix

package executor

import osexec "os/exec"

// killGroup is a no-op where process groups are not available, only the shell is killed.
func killGroup(cmd *osexec.Cmd) {}
