// Package ipcpath resolves the filesystem locations the daemon and its
// clients agree on: the IPC endpoint itself, and the PID/fingerprint
// sidecar files kept alongside it so a client can detect and clean up an
// orphaned daemon without ever connecting to it.
//
// Grounded on the original daemon's orphan.rs, which derives sidecar paths
// from the socket path via set_extension — same stem, different suffix.
package ipcpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EndpointPath returns the path to the daemon's IPC endpoint stem: a
// Unix-domain socket on POSIX (`$HOME/.mcp-daemon/socket`), and on
// Windows a presence-file stem under `%LOCALAPPDATA%\mcp-daemon\socket`
// backing the actual named pipe `\\.\pipe\mcp-daemon-<user>` (computed
// separately by PipeName and handed to the ipc transport through
// ListenTarget, so the transport never dials this path directly). Sidecars are always derived from this same stem.
func EndpointPath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "socket"), nil
}

// withExtension swaps a sidecar path's extension the way the original's
// set_extension does: same stem, new suffix.
func withExtension(endpoint, ext string) string {
	trimmed := strings.TrimSuffix(endpoint, filepath.Ext(endpoint))
	return trimmed + "." + ext
}

// PidFilePath returns the sidecar path recording the daemon's PID.
func PidFilePath(endpoint string) string {
	return withExtension(endpoint, "pid")
}

// FingerprintFilePath returns the sidecar path recording the daemon's
// config fingerprint at the time it started.
func FingerprintFilePath(endpoint string) string {
	return withExtension(endpoint, "fingerprint")
}

// WritePid atomically records the daemon's PID next to the endpoint, so a
// concurrent reader never observes a half-written file.
func WritePid(endpoint string, pid int) error {
	return writeAtomic(PidFilePath(endpoint), []byte(strconv.Itoa(pid)))
}

// ReadPid reads the daemon's recorded PID. It returns an error wrapping
// os.IsNotExist when no PID file exists, matching read_daemon_pid's
// "file not found" failure mode.
func ReadPid(endpoint string) (int, error) {
	data, err := os.ReadFile(PidFilePath(endpoint))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", PidFilePath(endpoint), err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("pid file %s: invalid pid %d", PidFilePath(endpoint), pid)
	}
	return pid, nil
}

// WriteFingerprint atomically records the daemon's config fingerprint next
// to the endpoint.
func WriteFingerprint(endpoint, fingerprint string) error {
	return writeAtomic(FingerprintFilePath(endpoint), []byte(fingerprint))
}

// ReadFingerprint reads the daemon's recorded config fingerprint.
func ReadFingerprint(endpoint string) (string, error) {
	data, err := os.ReadFile(FingerprintFilePath(endpoint))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// RemoveSidecars removes the pid and fingerprint files, ignoring
// not-exist errors — mirrors remove_pid_file/remove_fingerprint_file,
// which log-and-continue rather than fail the caller's cleanup.
func RemoveSidecars(endpoint string) {
	_ = removeIfExists(PidFilePath(endpoint))
	_ = removeIfExists(FingerprintFilePath(endpoint))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeAtomic writes via a temp file + rename so a reader never observes a
// truncated file mid-write.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
