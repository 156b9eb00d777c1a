//go:build !windows

package ipcpath

// ListenTarget returns the address ipc.Listen/ipc.Connect should use.
// On POSIX the endpoint path itself is the Unix-domain socket.
func ListenTarget(endpoint string) string { return endpoint }
