package ipcpath

import (
	"os"
	"testing"
)

func TestSidecarPaths(t *testing.T) {
	endpoint := "/tmp/mcp-daemon/daemon.sock"
	if got := PidFilePath(endpoint); got != "/tmp/mcp-daemon/daemon.pid" {
		t.Errorf("PidFilePath = %q", got)
	}
	if got := FingerprintFilePath(endpoint); got != "/tmp/mcp-daemon/daemon.fingerprint" {
		t.Errorf("FingerprintFilePath = %q", got)
	}
}

func TestWriteReadPid(t *testing.T) {
	dir := t.TempDir()
	endpoint := dir + "/daemon.sock"

	if err := WritePid(endpoint, 4242); err != nil {
		t.Fatalf("WritePid: %v", err)
	}
	pid, err := ReadPid(endpoint)
	if err != nil {
		t.Fatalf("ReadPid: %v", err)
	}
	if pid != 4242 {
		t.Errorf("expected pid 4242, got %d", pid)
	}
}

func TestReadPid_NotFound(t *testing.T) {
	dir := t.TempDir()
	endpoint := dir + "/daemon.sock"

	if _, err := ReadPid(endpoint); err == nil {
		t.Error("expected error reading nonexistent pid file")
	} else if !os.IsNotExist(err) {
		t.Errorf("expected IsNotExist error, got %v", err)
	}
}

func TestReadPid_RejectsNonPositive(t *testing.T) {
	dir := t.TempDir()
	endpoint := dir + "/daemon.sock"

	if err := WritePid(endpoint, -5); err != nil {
		t.Fatalf("WritePid: %v", err)
	}
	if _, err := ReadPid(endpoint); err == nil {
		t.Error("expected error reading a negative pid")
	}
}

func TestWriteReadFingerprint(t *testing.T) {
	dir := t.TempDir()
	endpoint := dir + "/daemon.sock"

	if err := WriteFingerprint(endpoint, "abc123"); err != nil {
		t.Fatalf("WriteFingerprint: %v", err)
	}
	fp, err := ReadFingerprint(endpoint)
	if err != nil {
		t.Fatalf("ReadFingerprint: %v", err)
	}
	if fp != "abc123" {
		t.Errorf("expected fingerprint abc123, got %q", fp)
	}
}

func TestRemoveSidecars(t *testing.T) {
	dir := t.TempDir()
	endpoint := dir + "/daemon.sock"

	if err := WritePid(endpoint, 1); err != nil {
		t.Fatal(err)
	}
	if err := WriteFingerprint(endpoint, "x"); err != nil {
		t.Fatal(err)
	}

	RemoveSidecars(endpoint)

	if _, err := os.Stat(PidFilePath(endpoint)); !os.IsNotExist(err) {
		t.Error("expected pid file removed")
	}
	if _, err := os.Stat(FingerprintFilePath(endpoint)); !os.IsNotExist(err) {
		t.Error("expected fingerprint file removed")
	}

	// Removing again (nothing to remove) must not panic or error visibly.
	RemoveSidecars(endpoint)
}

func TestIsProcessRunning_CurrentProcess(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("expected current process to be reported as running")
	}
}

func TestIsProcessRunning_ImplausiblePid(t *testing.T) {
	if IsProcessRunning(1 << 30) {
		t.Error("expected implausible pid to be reported as not running")
	}
}
