//go:build !windows

package ipc

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

type unixListener struct {
	l *net.UnixListener
}

// Listen binds a fresh Unix-domain socket at path. If a file already
// exists there, it probes it with a no-op connect: a live listener makes
// this fail with EndpointInUse; a refused/absent connect means the file
// is stale, so it is unlinked and bind proceeds — spec.md §4.B.
func Listen(path string) (Listener, error) {
	if _, err := os.Stat(path); err == nil {
		probe, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond)
		switch {
		case dialErr == nil:
			probe.Close()
			return nil, mcperr.New(mcperr.KindEndpointInUse, "endpoint already bound: "+path)
		case isConnRefused(dialErr) || errors.Is(dialErr, os.ErrNotExist):
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, mcperr.Wrap(mcperr.KindInternal, err, "remove stale endpoint "+path)
			}
		default:
			return nil, mcperr.Wrap(mcperr.KindStaleEndpoint, dialErr, "probe endpoint "+path)
		}
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "resolve endpoint "+path)
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "listen on "+path)
	}
	return &unixListener{l: l}, nil
}

func (u *unixListener) Accept() (Stream, error) {
	conn, err := u.l.AcceptUnix()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (u *unixListener) Close() error { return u.l.Close() }

// Connect opens a client stream to path, failing fast with NotRunning if
// nothing is listening there.
func Connect(path string) (Stream, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindNotRunning, err, "connect "+path)
	}
	return conn, nil
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED)
}
