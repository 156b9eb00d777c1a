//go:build !windows

package ipcpath

import (
	"fmt"
	"os"
	"path/filepath"
)

// baseDir returns (and creates) $HOME/.mcp-daemon.
func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".mcp-daemon")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}
