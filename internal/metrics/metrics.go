// Package metrics exposes the daemon's prometheus instrumentation. It is
// bound to an optional loopback-only HTTP endpoint (spec §6) — never the
// IPC endpoint itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCalls counts dispatched tool executions, labeled by server, tool
	// and outcome.
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_daemon_tool_calls_total",
		Help: "Total number of execute_tool dispatches",
	}, []string{"server", "tool", "status"}) // status: success, error, forbidden, timeout

	// ToolCallDuration measures end-to-end dispatch latency for
	// execute_tool, including queueing on the concurrency semaphore.
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mcp_daemon_tool_call_duration_seconds",
		Help:    "Time taken to dispatch an execute_tool request",
		Buckets: prometheus.DefBuckets,
	}, []string{"server"})

	// ServerState reports the current per-server pool state as a gauge
	// (1 for the active state, 0 otherwise), labeled by state name so a
	// dashboard can sum across servers per state.
	ServerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcp_daemon_server_state",
		Help: "Current connection pool state per server (1=active)",
	}, []string{"server", "state"})

	// ConnectionRetries counts initialize sequences that needed more than
	// one attempt (once per sequence, not once per retry), labeled by
	// server and whether a retry eventually succeeded.
	ConnectionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_daemon_connection_retries_total",
		Help: "Total number of per-server initialize sequences that needed a retry",
	}, []string{"server", "outcome"}) // outcome: succeeded, exhausted

	// ConcurrencyInUse tracks admitted (in-flight) dispatches against the
	// configured concurrency_limit.
	ConcurrencyInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp_daemon_concurrency_in_use",
		Help: "Number of dispatches currently holding the concurrency permit",
	})

	// RequestsDispatched counts every accepted connection's request by
	// kind, regardless of pool involvement.
	RequestsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_daemon_requests_total",
		Help: "Total number of IPC requests dispatched, by kind",
	}, []string{"kind"})

	// IdleSeconds reports time since last_activity, sampled by the idle
	// timer; a dashboard can alert on it approaching daemon_ttl.
	IdleSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp_daemon_idle_seconds",
		Help: "Seconds since the last dispatched request",
	})
)
