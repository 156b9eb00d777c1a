//go:build windows

package ipcpath

import (
	"fmt"
	"os"
	"path/filepath"
)

// baseDir returns (and creates) %LOCALAPPDATA%\mcp-daemon.
func baseDir() (string, error) {
	root := os.Getenv("LOCALAPPDATA")
	if root == "" {
		return "", fmt.Errorf("LOCALAPPDATA is not set")
	}
	dir := filepath.Join(root, "mcp-daemon")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// PipeName returns the named pipe path the Windows ipc transport binds
// and dials: \\.\pipe\mcp-daemon-<username>, per spec.
func PipeName() string {
	user := os.Getenv("USERNAME")
	if user == "" {
		user = "default"
	}
	return `\\.\pipe\mcp-daemon-` + user
}
