//go:build !windows

package ipcpath

import "golang.org/x/sys/unix"

// IsProcessRunning reports whether a process with the given PID exists,
// using signal 0 which performs permission/existence checks without
// actually delivering a signal — grounded on is_daemon_running's use of
// kill(pid, SIGZERO).
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the process exists but we lack permission to signal it —
	// still "running" from our perspective.
	return err == unix.EPERM
}
