//go:build windows

package clientlifecycle

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own process group so it survives the
// spawning client's exit, per spec.md §4.E step 4.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
