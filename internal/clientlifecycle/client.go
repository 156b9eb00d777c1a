// Package clientlifecycle implements the client-side ensure-daemon logic
// (component E): reuse a live daemon, detect and clean up an orphan, or
// spawn a fresh one and wait for it to come up. Grounded on the
// teacher's client construction (NewMCPClient) for the thin wrapper
// shape and on its transport retry/backoff style, generalized here to
// spec.md §4.E's exponential reconnect schedule (distinct from the
// pool's linear retry_delay_ms backoff).
package clientlifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/ipc"
	"github.com/mcp-daemon/mcp-daemon/internal/ipcpath"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
	"github.com/mcp-daemon/mcp-daemon/internal/protocol"
)

// Client is a thin wrapper over one request/response exchange with the
// daemon. Every call opens a fresh stream, matching spec.md §4.B's "one
// request then one response per stream connection, then close."
type Client struct {
	endpoint string
}

func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	stream, err := ipc.Connect(ipcpath.ListenTarget(c.endpoint))
	if err != nil {
		return protocol.Response{}, err
	}
	defer stream.Close()

	conn := ipc.NewConn(stream)
	if err := conn.WriteRequest(req); err != nil {
		return protocol.Response{}, err
	}
	return conn.ReadResponse()
}

func (c *Client) Ping() error {
	resp, err := c.roundTrip(protocol.PingRequest())
	if err != nil {
		return err
	}
	if resp.Kind != protocol.ResponsePong {
		return mcperr.New(mcperr.KindBadRequest, "expected pong response")
	}
	return nil
}

func (c *Client) GetConfigFingerprint() (string, error) {
	resp, err := c.roundTrip(protocol.GetConfigFingerprintRequest())
	if err != nil {
		return "", err
	}
	return resp.ConfigFingerprint, asError(resp)
}

func (c *Client) ListServers() ([]string, error) {
	resp, err := c.roundTrip(protocol.ListServersRequest())
	if err != nil {
		return nil, err
	}
	return resp.ServerList, asError(resp)
}

func (c *Client) ListTools(server string) ([]protocol.ToolInfo, error) {
	resp, err := c.roundTrip(protocol.ListToolsRequest(server))
	if err != nil {
		return nil, err
	}
	return resp.ToolList, asError(resp)
}

func (c *Client) ExecuteTool(server, tool string, arguments []byte) ([]byte, error) {
	resp, err := c.roundTrip(protocol.ExecuteToolRequest(server, tool, arguments))
	if err != nil {
		return nil, err
	}
	return resp.ToolResult, asError(resp)
}

func (c *Client) Shutdown() error {
	resp, err := c.roundTrip(protocol.ShutdownRequest())
	if err != nil {
		return err
	}
	if resp.Kind != protocol.ResponseShutdownAck {
		return asError(resp)
	}
	return nil
}

func asError(resp protocol.Response) error {
	if resp.Kind != protocol.ResponseError {
		return nil
	}
	return mcperr.New(kindFromCode(resp.Error.Code), resp.Error.Message)
}

func kindFromCode(code int) mcperr.Kind {
	switch code {
	case mcperr.KindBadRequest.Code():
		return mcperr.KindBadRequest
	case mcperr.KindNotRunning.Code():
		return mcperr.KindNotRunning
	case mcperr.KindForbidden.Code():
		return mcperr.KindForbidden
	case mcperr.KindTimeout.Code():
		return mcperr.KindTimeout
	default:
		return mcperr.KindInternal
	}
}

// EnsureDaemon implements spec.md §4.E: reuse a live, fingerprint-matching
// daemon; restart one whose config has drifted; clean up and spawn one
// where none is running.
func EnsureDaemon(ctx context.Context, cfg *config.Config) (*Client, error) {
	endpoint, err := ipcpath.EndpointPath()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindConfig, err, "resolve endpoint path")
	}
	desiredFP, err := config.Fingerprint(cfg)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindConfig, err, "compute config fingerprint")
	}

	client := &Client{endpoint: endpoint}

	if err := client.Ping(); err == nil {
		remoteFP, err := client.GetConfigFingerprint()
		if err == nil && remoteFP == desiredFP {
			return client, nil
		}
		// Fingerprint mismatch (or unreadable): restart, per spec.md §4.E
		// step 2 and Open Question 1 — divergent from the original source's
		// incomplete TODO stub, by design.
		_ = client.Shutdown()
		if err := waitForEndpointGone(endpoint, 5*time.Second); err != nil {
			return nil, mcperr.Wrap(mcperr.KindDaemonStartTimeout, err, "waiting for stale daemon to exit")
		}
	}

	if err := cleanupOrphan(endpoint); err != nil {
		return nil, err
	}

	if err := spawnDaemon(); err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "spawn daemon")
	}

	if err := reconnectWithBackoff(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// waitForEndpointGone polls for the endpoint file/pipe to disappear,
// spec.md §4.E step 2 ("poll with 50ms interval up to 5s").
func waitForEndpointGone(endpoint string, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(endpoint); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("endpoint %s still present after %s", endpoint, budget)
}

// cleanupOrphan implements spec.md §4.E's orphan cleanup protocol: a
// stale endpoint file and any sidecars naming a dead (or unresponsive)
// process are removed before a new daemon is spawned.
func cleanupOrphan(endpoint string) error {
	if _, err := (&Client{endpoint: endpoint}).roundTrip(protocol.PingRequest()); err == nil {
		return nil // a daemon answered; nothing orphaned
	}

	if err := os.Remove(endpoint); err != nil && !os.IsNotExist(err) {
		return mcperr.Wrap(mcperr.KindInternal, err, "remove stale endpoint")
	}

	pid, err := ipcpath.ReadPid(endpoint)
	if err == nil {
		if ipcpath.IsProcessRunning(pid) {
			_ = ipcpath.TerminateProcess(pid)
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) && ipcpath.IsProcessRunning(pid) {
				time.Sleep(50 * time.Millisecond)
			}
		}
	}

	ipcpath.RemoveSidecars(endpoint)
	return nil
}

// spawnDaemon resolves the daemon binary (sibling of the current
// executable first, then PATH) and launches it detached so it survives
// the client's exit — spec.md §4.E step 4.
func spawnDaemon() error {
	bin, err := resolveDaemonBinary()
	if err != nil {
		return err
	}
	cmd := exec.Command(bin)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)
	return cmd.Start()
}

const daemonBinaryName = "mcp-daemon"

func resolveDaemonBinary() (string, error) {
	self, err := os.Executable()
	if err != nil {
		self = ""
	}
	return findDaemonBinary(self)
}

// findDaemonBinary looks for the daemon binary next to selfPath first,
// then on PATH — spec.md §4.E step 4. Split out from resolveDaemonBinary
// so tests can supply a fake selfPath instead of the test binary's own.
func findDaemonBinary(selfPath string) (string, error) {
	if selfPath != "" {
		sibling := filepath.Join(filepath.Dir(selfPath), daemonBinaryName)
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(daemonBinaryName)
	if err != nil {
		return "", fmt.Errorf("resolve %s: not found next to executable or on PATH: %w", daemonBinaryName, err)
	}
	return path, nil
}

// reconnectWithBackoff retries Ping with exponential backoff (100ms
// doubling to a 1s cap, 5s total budget), spec.md §4.E step 5.
func reconnectWithBackoff(ctx context.Context, client *Client) error {
	delay := 100 * time.Millisecond
	const maxDelay = time.Second
	deadline := time.Now().Add(5 * time.Second)

	for {
		if err := client.Ping(); err == nil {
			return nil
		}
		if !time.Now().Before(deadline) {
			return mcperr.New(mcperr.KindDaemonStartTimeout, "daemon did not become ready within 5s")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
