//go:build windows

package ipcpath

import "golang.org/x/sys/windows"

// IsProcessRunning reports whether a process with the given PID exists and
// has not exited, grounded on is_daemon_running's Windows branch
// (OpenProcess + GetExitCodeProcess + STILL_ACTIVE check).
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	return exitCode == windows.STILL_ACTIVE
}
