//go:build !windows

package ipcpath

import "golang.org/x/sys/unix"

// TerminateProcess sends SIGTERM to pid, grounded on kill_daemon_process's
// POSIX branch. The caller is responsible for waiting/polling liveness
// afterward; this does not block for exit.
func TerminateProcess(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
