package pool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

// fakeSession is a minimal stand-in for *mcp.ClientSession, since the
// pool depends on it only through the narrow `session` interface.
type fakeSession struct {
	tools       []mcp.Tool
	callResult  *mcp.CallToolResult
	callErr     error
	listErr     error
	closed      atomic.Bool
	callCount   atomic.Int32
}

func (f *fakeSession) ListTools(ctx context.Context, _ *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	f.callCount.Add(1)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

func testConfig(servers ...config.ServerConfig) *config.Config {
	return &config.Config{
		Servers:          servers,
		ConcurrencyLimit: 4,
		RetryMax:         2,
		RetryDelayMS:     1,
		TimeoutSecs:      5,
		DaemonTTL:        300,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestEnsureReady_TransitionsToReadyOnSuccess(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "echo", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "echo"}})
	p := New(cfg, discardLogger())

	fake := &fakeSession{}
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) {
		return fake, nil
	})

	s, err := p.ensureReady(context.Background(), "echo")
	if err != nil {
		t.Fatalf("ensureReady: %v", err)
	}
	if s != session(fake) {
		t.Error("expected fake session to be returned")
	}

	state, err := p.State("echo")
	if err != nil || state != Ready {
		t.Fatalf("expected Ready, got %v (err %v)", state, err)
	}
}

func TestEnsureReady_RetriesThenFails(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "flaky", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "flaky"}})
	p := New(cfg, discardLogger())

	var attempts atomic.Int32
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) {
		attempts.Add(1)
		return nil, mcperr.NewRetryableError(errors.New("connection refused"))
	})

	_, err := p.ensureReady(context.Background(), "flaky")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// retry_max=2 ⇒ 3 total attempts (initial + 2 retries).
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 connect attempts, got %d", got)
	}

	state, _ := p.State("flaky")
	if state != Failed {
		t.Errorf("expected Failed state, got %v", state)
	}
}

func TestEnsureReady_NonRetryableErrorFailsFast(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "bad-config", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "bad"}})
	p := New(cfg, discardLogger())

	var attempts atomic.Int32
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) {
		attempts.Add(1)
		return nil, errors.New("malformed transport config")
	})

	_, err := p.ensureReady(context.Background(), "bad-config")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected a non-retryable connect error to fail after 1 attempt, got %d", got)
	}
}

func TestEnsureReady_UnknownServer(t *testing.T) {
	p := New(testConfig(), discardLogger())
	_, err := p.ensureReady(context.Background(), "nope")
	if mcperr.KindOf(err) != mcperr.KindBadRequest {
		t.Errorf("expected KindBadRequest, got %v", err)
	}
}

func TestListTools_AppliesFilter(t *testing.T) {
	cfg := testConfig(config.ServerConfig{
		Name:          "srv",
		Transport:     config.ServerTransport{Type: config.TransportStdio, Command: "srv"},
		DisabledTools: []string{"danger_*"},
	})
	p := New(cfg, discardLogger())

	fake := &fakeSession{tools: []mcp.Tool{
		{Name: "safe_read", Description: "reads things"},
		{Name: "danger_delete", Description: "deletes things"},
	}}
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) { return fake, nil })

	tools, err := p.ListTools(context.Background(), "srv")
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "safe_read" {
		t.Errorf("expected only safe_read to survive the filter, got %+v", tools)
	}
}

func TestCallTool_DeniedByFilterNeverDialsTransport(t *testing.T) {
	cfg := testConfig(config.ServerConfig{
		Name:         "srv",
		Transport:    config.ServerTransport{Type: config.TransportStdio, Command: "srv"},
		AllowedTools: []string{"safe_*"},
	})
	p := New(cfg, discardLogger())

	var dialed atomic.Bool
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) {
		dialed.Store(true)
		return &fakeSession{}, nil
	})

	_, err := p.CallTool(context.Background(), "srv", "risky_delete", nil)
	if mcperr.KindOf(err) != mcperr.KindForbidden {
		t.Fatalf("expected KindForbidden, got %v", err)
	}
	if dialed.Load() {
		t.Error("filter should reject before any connection attempt")
	}
}

func TestCallTool_SuccessMarshalsResult(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "srv", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "srv"}})
	p := New(cfg, discardLogger())

	fake := &fakeSession{callResult: &mcp.CallToolResult{}}
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) { return fake, nil })

	raw, err := p.CallTool(context.Background(), "srv", "safe_read", json.RawMessage(`{"path":"/tmp"}`))
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(raw) == 0 {
		t.Error("expected non-empty marshaled result")
	}
	if fake.callCount.Load() != 1 {
		t.Errorf("expected exactly one CallTool invocation, got %d", fake.callCount.Load())
	}
}

func TestCallTool_MCPErrorMarksServerFailed(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "srv", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "srv"}})
	p := New(cfg, discardLogger())

	fake := &fakeSession{callErr: errors.New("transport closed")}
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) { return fake, nil })

	_, err := p.CallTool(context.Background(), "srv", "safe_read", nil)
	if mcperr.KindOf(err) != mcperr.KindMCP {
		t.Fatalf("expected KindMCP, got %v", err)
	}
	state, _ := p.State("srv")
	if state != Failed {
		t.Errorf("expected server marked Failed after transport error, got %v", state)
	}
}

func TestCallTool_UnknownServer(t *testing.T) {
	p := New(testConfig(), discardLogger())
	_, err := p.CallTool(context.Background(), "nope", "tool", nil)
	if mcperr.KindOf(err) != mcperr.KindBadRequest {
		t.Errorf("expected KindBadRequest, got %v", err)
	}
}

func TestListServers_PreservesConfigOrder(t *testing.T) {
	cfg := testConfig(
		config.ServerConfig{Name: "b", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "b"}},
		config.ServerConfig{Name: "a", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "a"}},
	)
	p := New(cfg, discardLogger())
	got := p.ListServers()
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("expected config order [b a], got %v", got)
	}
}

func TestClose_ClosesReadySessions(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "srv", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "srv"}})
	p := New(cfg, discardLogger())

	fake := &fakeSession{}
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) { return fake, nil })

	if _, err := p.ensureReady(context.Background(), "srv"); err != nil {
		t.Fatalf("ensureReady: %v", err)
	}
	p.Close()
	if !fake.closed.Load() {
		t.Error("expected Close to close the underlying session")
	}
	state, _ := p.State("srv")
	if state != Closing {
		t.Errorf("expected Closing state, got %v", state)
	}
}

func TestEnsureReady_ConcurrentCallersCoalesceViaSingleflight(t *testing.T) {
	cfg := testConfig(config.ServerConfig{Name: "srv", Transport: config.ServerTransport{Type: config.TransportStdio, Command: "srv"}})
	p := New(cfg, discardLogger())

	var connectCount atomic.Int32
	p.SetConnector(func(ctx context.Context, sc config.ServerConfig) (session, error) {
		connectCount.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &fakeSession{}, nil
	})

	done := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := p.ensureReady(context.Background(), "srv")
			done <- err
		}()
	}
	for i := 0; i < 5; i++ {
		if err := <-done; err != nil {
			t.Errorf("ensureReady goroutine failed: %v", err)
		}
	}
	if got := connectCount.Load(); got != 1 {
		t.Errorf("expected exactly one connect dial, got %d", got)
	}
}
