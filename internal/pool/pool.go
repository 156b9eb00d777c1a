// Package pool implements the daemon's per-server connection pool
// (component C): the Uninitialized/Initializing/Ready/Failed/Closing state
// machine, singleflight-coalesced handshakes, linear-backoff retry, a
// daemon-wide concurrency gate, and filtered list_tools/call_tool
// dispatch.
//
// Grounded on the teacher's internal/client package (MCPClient's
// sessions/stale/circuits maps, getOrReconnect, CallTool retry loop,
// refreshToolCache) and its transport.go (stdio vs http transport
// construction), re-targeted from the ADK toolset abstraction directly
// onto *mcp.ClientSession — the shape the underlying calls actually have
// (session.ListTools, session.CallTool), since the daemon has no ADK
// agent to serve.
package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/filter"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
	"github.com/mcp-daemon/mcp-daemon/internal/metrics"
	"github.com/mcp-daemon/mcp-daemon/internal/protocol"
	synclock "github.com/mcp-daemon/mcp-daemon/internal/sync"
)

// State is a per-server pool state, per spec §4.C.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
	Closing
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Closing:
		return "closing"
	default:
		return "uninitialized"
	}
}

// session is the subset of *mcp.ClientSession the pool depends on,
// narrowed to an interface so tests can substitute a fake without a real
// subprocess or network round trip.
type session interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Connector opens a new session to the named server. The default
// implementation builds a real mcp.Transport and performs the MCP
// handshake; tests inject a fake.
type Connector func(ctx context.Context, sc config.ServerConfig) (session, error)

type entry struct {
	state   State
	session session
	lastErr error
}

// Pool owns one entry per configured server and brokers every list_tools
// / call_tool dispatch through it.
type Pool struct {
	cfg       *config.Config
	connector Connector
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // configuration order, for ListServers

	locks   *synclock.KeyLock
	group   singleflight.Group
	sem     *semaphore.Weighted
	filters *filter.Cache
}

// New builds a Pool with one Uninitialized entry per configured server.
func New(cfg *config.Config, logger *slog.Logger) *Pool {
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		entries: make(map[string]*entry, len(cfg.Servers)),
		locks:   synclock.NewKeyLock(),
		sem:     semaphore.NewWeighted(int64(cfg.ConcurrencyLimit)),
		filters: filter.NewCache(),
	}
	p.connector = p.defaultConnect
	for _, s := range cfg.Servers {
		p.entries[s.Name] = &entry{state: Uninitialized}
		p.order = append(p.order, s.Name)
	}
	return p
}

// SetConnector overrides how the pool opens sessions; exposed for tests.
func (p *Pool) SetConnector(c Connector) { p.connector = c }

// ListServers returns configured server names in configuration order.
func (p *Pool) ListServers() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// State reports a server's current pool state, or a BadRequest error for
// an unknown server name.
func (p *Pool) State(serverName string) (State, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[serverName]
	if !ok {
		return Uninitialized, mcperr.New(mcperr.KindBadRequest, fmt.Sprintf("unknown server %q", serverName))
	}
	return e.state, nil
}

func (p *Pool) serverConfig(name string) (config.ServerConfig, bool) {
	for _, s := range p.cfg.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return config.ServerConfig{}, false
}

// ensureReady returns a Ready session for serverName, retrying at most
// retry_max times with a retry_delay_ms linear backoff on failure (spec
// §4.C). At most one initialize attempt runs per server at a time;
// concurrent callers during Initializing share its outcome via
// singleflight.
func (p *Pool) ensureReady(ctx context.Context, serverName string) (session, error) {
	p.mu.RLock()
	e, ok := p.entries[serverName]
	if ok && e.state == Ready {
		s := e.session
		p.mu.RUnlock()
		return s, nil
	}
	p.mu.RUnlock()

	if !ok {
		return nil, mcperr.New(mcperr.KindBadRequest, fmt.Sprintf("unknown server %q", serverName))
	}

	val, err, _ := p.group.Do(serverName, func() (interface{}, error) {
		p.mu.RLock()
		if e.state == Ready {
			s := e.session
			p.mu.RUnlock()
			return s, nil
		}
		p.mu.RUnlock()

		sc, ok := p.serverConfig(serverName)
		if !ok {
			return nil, mcperr.New(mcperr.KindBadRequest, fmt.Sprintf("unknown server %q", serverName))
		}

		p.mu.Lock()
		e.state = Initializing
		p.mu.Unlock()

		var lastErr error
		delay := time.Duration(p.cfg.RetryDelayMS) * time.Millisecond
		attempted := 0

		for attempt := 0; attempt <= p.cfg.RetryMax; attempt++ {
			attempted++
			s, connErr := p.connector(ctx, sc)
			if connErr == nil {
				p.mu.Lock()
				e.state = Ready
				e.session = s
				e.lastErr = nil
				p.mu.Unlock()
				metrics.ServerState.WithLabelValues(serverName, Ready.String()).Set(1)
				if attempt > 0 {
					metrics.ConnectionRetries.WithLabelValues(serverName, "succeeded").Inc()
				}
				return s, nil
			}

			lastErr = connErr
			p.logger.Warn("mcp handshake failed", "server", serverName, "attempt", attempt, "error", connErr)

			// Only an error the connector marked retryable (transient
			// handshake/transport failure) gets another attempt; a
			// non-retryable error (e.g. a malformed transport config) fails
			// fast instead of burning retry_max attempts on something a
			// retry can never fix.
			if !isRetryable(connErr) {
				break
			}

			if attempt < p.cfg.RetryMax {
				select {
				case <-ctx.Done():
					lastErr = ctx.Err()
					attempt = p.cfg.RetryMax // break out via loop condition
				case <-time.After(delay):
				}
			}
		}

		if attempted > 1 {
			metrics.ConnectionRetries.WithLabelValues(serverName, "exhausted").Inc()
		}

		p.mu.Lock()
		e.state = Failed
		e.lastErr = lastErr
		p.mu.Unlock()
		metrics.ServerState.WithLabelValues(serverName, Failed.String()).Set(1)
		return nil, mcperr.Wrap(mcperr.KindMCP, lastErr, fmt.Sprintf("connect to %q", serverName))
	})

	if err != nil {
		return nil, err
	}
	return val.(session), nil
}

// isRetryable reports whether connErr was marked retryable by the
// connector (internal/pool/connect.go wraps transient dial/handshake
// failures in mcperr.RetryableError; a config-shaped error like an
// unknown transport type is left unwrapped and is never retried).
func isRetryable(connErr error) bool {
	var re *mcperr.RetryableError
	return errors.As(connErr, &re)
}

// toolFilter returns the compiled filter for serverName, per its
// configured allowed_tools/disabled_tools.
func (p *Pool) toolFilter(serverName string) (*filter.ToolFilter, error) {
	sc, ok := p.serverConfig(serverName)
	if !ok {
		return nil, mcperr.New(mcperr.KindBadRequest, fmt.Sprintf("unknown server %q", serverName))
	}
	return p.filters.GetOrCompile(serverName, sc.AllowedTools, sc.DisabledTools)
}

// ListTools returns serverName's tools, minus any denied by its filter.
func (p *Pool) ListTools(ctx context.Context, serverName string) ([]protocol.ToolInfo, error) {
	tf, err := p.toolFilter(serverName)
	if err != nil {
		return nil, err
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, mcperr.Wrap(mcperr.KindTimeout, err, "acquire concurrency permit")
	}
	defer p.sem.Release(1)
	metrics.ConcurrencyInUse.Inc()
	defer metrics.ConcurrencyInUse.Dec()

	p.locks.Lock(serverName)
	defer p.locks.Unlock(serverName)

	s, err := p.ensureReady(ctx, serverName)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	result, err := s.ListTools(callCtx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, p.classifyCallErr(serverName, err)
	}

	names := make([]string, len(result.Tools))
	for i, t := range result.Tools {
		names[i] = t.Name
	}
	allowed := make(map[string]bool, len(result.Tools))
	for _, n := range tf.FilterNames(names) {
		allowed[n] = true
	}

	out := make([]protocol.ToolInfo, 0, len(allowed))
	for _, t := range result.Tools {
		if !allowed[t.Name] {
			continue
		}
		schema, _ := json.Marshal(t.InputSchema)
		out = append(out, protocol.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// CallTool dispatches execute_tool: filter first (deny ⇒ Forbidden),
// then acquire the concurrency permit, then the per-server lock, then
// run the call under the configured timeout.
func (p *Pool) CallTool(ctx context.Context, serverName, toolName string, arguments json.RawMessage) (json.RawMessage, error) {
	tf, err := p.toolFilter(serverName)
	if err != nil {
		return nil, err
	}
	if !tf.Allowed(toolName) {
		metrics.ToolCalls.WithLabelValues(serverName, toolName, "forbidden").Inc()
		return nil, mcperr.New(mcperr.KindForbidden,
			fmt.Sprintf("tool %q on server %q blocked by filter", toolName, serverName))
	}

	timer := prometheusTimer(serverName)
	defer timer()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, mcperr.Wrap(mcperr.KindTimeout, err, "acquire concurrency permit")
	}
	defer p.sem.Release(1)
	metrics.ConcurrencyInUse.Inc()
	defer metrics.ConcurrencyInUse.Dec()

	p.locks.Lock(serverName)
	defer p.locks.Unlock(serverName)

	s, err := p.ensureReady(ctx, serverName)
	if err != nil {
		metrics.ToolCalls.WithLabelValues(serverName, toolName, "error").Inc()
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return nil, mcperr.Wrap(mcperr.KindBadRequest, err, "decode tool arguments")
		}
	}

	result, err := s.CallTool(callCtx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, p.classifyToolCallErr(serverName, toolName, err)
	}

	metrics.ToolCalls.WithLabelValues(serverName, toolName, "success").Inc()
	out, err := json.Marshal(result)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "encode tool result")
	}
	return out, nil
}

func prometheusTimer(serverName string) func() {
	start := time.Now()
	return func() {
		metrics.ToolCallDuration.WithLabelValues(serverName).Observe(time.Since(start).Seconds())
	}
}

// classifyCallErr maps a list_tools failure to a Timeout when the call's
// own deadline fired, otherwise marks the server stale so the next
// request retries the handshake — a connection error, not a request
// error, per spec §4.C ("Ready -> Failed on unrecoverable error").
func (p *Pool) classifyCallErr(serverName string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return mcperr.Wrap(mcperr.KindTimeout, err, fmt.Sprintf("list_tools on %q", serverName))
	}
	p.markFailed(serverName, err)
	return mcperr.Wrap(mcperr.KindMCP, err, fmt.Sprintf("list_tools on %q", serverName))
}

func (p *Pool) classifyToolCallErr(serverName, toolName string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.ToolCalls.WithLabelValues(serverName, toolName, "timeout").Inc()
		return mcperr.Wrap(mcperr.KindTimeout, err, fmt.Sprintf("call_tool %s/%s", serverName, toolName))
	}
	metrics.ToolCalls.WithLabelValues(serverName, toolName, "error").Inc()
	p.markFailed(serverName, err)
	return mcperr.Wrap(mcperr.KindMCP, err, fmt.Sprintf("call_tool %s/%s", serverName, toolName))
}

func (p *Pool) markFailed(serverName string, err error) {
	p.mu.Lock()
	if e, ok := p.entries[serverName]; ok {
		e.state = Failed
		e.lastErr = err
		e.session = nil
	}
	p.mu.Unlock()
	metrics.ServerState.WithLabelValues(serverName, Failed.String()).Set(1)
}

// Close transitions every entry to Closing and releases its session,
// per spec §4.D graceful shutdown ("close pool: send MCP shutdown and
// drop transports").
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, e := range p.entries {
		if e.session != nil {
			if err := e.session.Close(); err != nil {
				p.logger.Warn("close session failed", "server", name, "error", err)
			}
		}
		e.state = Closing
		e.session = nil
	}
}
