// Package ipc implements the daemon's local transport (component B):
// binding/connecting a single per-user stream endpoint and framing
// NDJSON request/response pairs over it. POSIX and Windows are two
// concrete transports behind the same Listener/Stream capability set,
// selected at compile time by build tag — grounded on the teacher's own
// platform-neutral capability-interface style and, for the stale-file
// detection and Windows named-pipe precedent, on
// DataDog-datadog-agent's comp/dogstatsd/listeners UDS/named-pipe code.
package ipc

import (
	"bufio"
	"io"

	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
	"github.com/mcp-daemon/mcp-daemon/internal/protocol"
)

// Listener accepts one Stream per call, mirroring spec.md §4.B's
// `listen(path) -> Server` capability.
type Listener interface {
	Accept() (Stream, error)
	Close() error
}

// Stream is a full-duplex, ordered, reliable connection between a
// client and the daemon: exactly one request then one response, then
// close.
type Stream interface {
	io.ReadWriteCloser
}

// Conn wraps a Stream with NDJSON framing, used identically by the
// daemon (to read one Request, write one Response) and the client (to
// write one Request, read one Response).
type Conn struct {
	s Stream
	r *bufio.Reader
	w *bufio.Writer
}

// NewConn wraps s for one request/response exchange.
func NewConn(s Stream) *Conn {
	return &Conn{s: s, r: protocol.NewReader(s), w: bufio.NewWriter(s)}
}

func (c *Conn) ReadRequest() (protocol.Request, error) {
	req, err := protocol.ReadRequest(c.r)
	if err != nil {
		return req, mcperr.Wrap(mcperr.KindBadRequest, err, "read request")
	}
	return req, nil
}

func (c *Conn) WriteResponse(resp protocol.Response) error {
	if err := protocol.WriteResponse(c.w, resp); err != nil {
		return mcperr.Wrap(mcperr.KindInternal, err, "write response")
	}
	return nil
}

func (c *Conn) WriteRequest(req protocol.Request) error {
	if err := protocol.WriteRequest(c.w, req); err != nil {
		return mcperr.Wrap(mcperr.KindInternal, err, "write request")
	}
	return nil
}

func (c *Conn) ReadResponse() (protocol.Response, error) {
	resp, err := protocol.ReadResponse(c.r)
	if err != nil {
		return resp, mcperr.Wrap(mcperr.KindBadRequest, err, "read response")
	}
	return resp, nil
}

func (c *Conn) Close() error { return c.s.Close() }
