//go:build windows

package ipcpath

import "golang.org/x/sys/windows"

// TerminateProcess forcibly ends the process, grounded on
// kill_daemon_process's Windows branch (OpenProcess + TerminateProcess).
func TerminateProcess(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}
