//go:build windows

package ipcpath

// ListenTarget returns the address ipc.Listen/ipc.Connect should use. On
// Windows the endpoint path is only the presence-file stem for sidecars;
// the real rendezvous is the named pipe from PipeName.
func ListenTarget(endpoint string) string { return PipeName() }
