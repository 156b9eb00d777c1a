//go:build !windows

package clientlifecycle

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own session so it survives the spawning
// client's exit, per spec.md §4.E step 4.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
