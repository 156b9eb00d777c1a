package pool

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

// implementation identifies this daemon to every MCP server it connects
// to, the same Name/Version handshake field every example in the corpus
// populates.
var implementation = &mcp.Implementation{Name: "mcp-daemon", Version: "0.1.0"}

// headerRoundTripper injects static headers into every outgoing HTTP
// request, grounded on the teacher's TokenRoundTripper but generalized
// to arbitrary configured headers rather than a single bearer token.
type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// defaultConnect opens a new MCP session to sc, selecting a transport by
// sc.Transport.Type. Grounded on the teacher's NewMCPTransport/
// newStdioTransport/newSSETransport plus the session-construction shape
// (mcp.NewClient then Connect) shown across the retrieval pack's raw
// go-sdk clients, since the teacher's own call site hides that step
// behind the ADK mcptoolset wrapper this daemon does not use.
func (p *Pool) defaultConnect(ctx context.Context, sc config.ServerConfig) (session, error) {
	// A malformed transport config (unknown type) is not retryable — no
	// number of retries fixes a bad config.toml entry.
	transport, err := buildTransport(ctx, sc.Transport)
	if err != nil {
		return nil, fmt.Errorf("build transport for %q: %w", sc.Name, err)
	}

	// The handshake itself (process spawn, dial, MCP initialize) can fail
	// transiently — a slow-starting child process, a server mid-restart —
	// so these are marked retryable for ensureReady's backoff loop.
	client := mcp.NewClient(implementation, nil)
	s, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, mcperr.NewRetryableError(fmt.Errorf("connect to %q: %w", sc.Name, err))
	}
	return s, nil
}

func buildTransport(ctx context.Context, t config.ServerTransport) (mcp.Transport, error) {
	switch t.Type {
	case config.TransportStdio:
		return buildStdioTransport(ctx, t)
	case config.TransportHTTP:
		return buildHTTPTransport(t), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", t.Type)
	}
}

func buildStdioTransport(ctx context.Context, t config.ServerTransport) (mcp.Transport, error) {
	cmd := exec.CommandContext(ctx, t.Command, t.Args...)
	if t.Cwd != "" {
		cmd.Dir = t.Cwd
	}
	if len(t.Env) > 0 {
		env := os.Environ()
		for k, v := range t.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}
	return &mcp.CommandTransport{Command: cmd}, nil
}

func buildHTTPTransport(t config.ServerTransport) mcp.Transport {
	httpClient := http.DefaultClient
	if len(t.Headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerRoundTripper{base: http.DefaultTransport, headers: t.Headers},
		}
	}
	return &mcp.StreamableClientTransport{
		Endpoint:   t.URL,
		HTTPClient: httpClient,
	}
}
