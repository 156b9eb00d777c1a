//go:build windows

package ipc

import (
	"net"
	"time"

	winio "github.com/Microsoft/go-winio"

	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

type winListener struct {
	l net.Listener
}

// Listen creates the named pipe instance at path
// (\\.\pipe\mcp-daemon-<user>, from ipcpath.PipeName). Windows recreates
// a pipe instance per accept internally, so there is no stale-file
// concept analogous to POSIX — spec.md §4.B.
func Listen(path string) (Listener, error) {
	l, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindEndpointInUse, err, "listen on "+path)
	}
	return &winListener{l: l}, nil
}

func (w *winListener) Accept() (Stream, error) {
	conn, err := w.l.Accept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (w *winListener) Close() error { return w.l.Close() }

// Connect dials the named pipe, failing fast with NotRunning if nothing
// is listening.
func Connect(path string) (Stream, error) {
	conn, err := winio.DialPipe(path, durationPtr(2*time.Second))
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindNotRunning, err, "connect "+path)
	}
	return conn, nil
}

func durationPtr(d time.Duration) *time.Duration { return &d }
