// Package daemon implements the daemon core (component D): startup
// sequence, accept loop, request dispatch, idle-timeout and signal
// driven graceful shutdown. Grounded on the teacher's cmd/server/main.go
// (config load → client init → listener → signal-driven graceful
// shutdown with a bounded grace period) generalized from an HTTP server
// fronting a webhook handler to an IPC listener fronting the connection
// pool.
package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
	"github.com/mcp-daemon/mcp-daemon/internal/ipc"
	"github.com/mcp-daemon/mcp-daemon/internal/ipcpath"
	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
	"github.com/mcp-daemon/mcp-daemon/internal/metrics"
	"github.com/mcp-daemon/mcp-daemon/internal/pool"
	"github.com/mcp-daemon/mcp-daemon/internal/protocol"
)

// gracePeriod bounds how long in-flight dispatches get to finish once
// shutdown starts, per spec.md §5 ("bounded grace (≤ 2s)").
const gracePeriod = 2 * time.Second

// Daemon owns the accept loop, the pool, and the lifecycle timers. All
// of its mutable state beyond the pool's own locking is the single
// lastActivity timestamp, updated atomically by every dispatch.
type Daemon struct {
	cfg         *config.Config
	endpoint    string
	fingerprint string
	logger      *slog.Logger
	pool        *pool.Pool
	listener    ipc.Listener

	lastActivity atomic.Int64 // unix nanoseconds

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	inFlight     sync.WaitGroup
}

// New performs the startup sequence from spec.md §4.D steps 1-3: binds
// the endpoint (exiting the caller should treat EndpointInUse as fatal),
// writes the pid/fingerprint sidecars, and constructs the pool.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	endpoint, err := ipcpath.EndpointPath()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindConfig, err, "resolve endpoint path")
	}

	fp, err := config.Fingerprint(cfg)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.KindConfig, err, "compute config fingerprint")
	}

	listener, err := ipc.Listen(ipcpath.ListenTarget(endpoint))
	if err != nil {
		return nil, err // already an EndpointInUse-kind *mcperr.Error
	}

	if err := ipcpath.WritePid(endpoint, os.Getpid()); err != nil {
		listener.Close()
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "write pid sidecar")
	}
	if err := ipcpath.WriteFingerprint(endpoint, fp); err != nil {
		listener.Close()
		return nil, mcperr.Wrap(mcperr.KindInternal, err, "write fingerprint sidecar")
	}

	d := &Daemon{
		cfg:         cfg,
		endpoint:    endpoint,
		fingerprint: fp,
		logger:      logger,
		pool:        pool.New(cfg, logger),
		listener:    listener,
		shutdownCh:  make(chan struct{}),
	}
	d.touch()
	return d, nil
}

// Run launches the idle-timer and signal watchers, then enters the
// accept loop. It blocks until shutdown completes and always cleans up
// sidecars and the endpoint file before returning — spec.md §4.D
// ("endpoint removal must happen on all exit paths").
func (d *Daemon) Run(ctx context.Context) error {
	defer d.cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go d.watchIdle(ctx)
	go d.watchSignals()

	d.acceptLoop(ctx)
	d.inFlight.Wait()
	return nil
}

func (d *Daemon) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-d.shutdownCh:
			return
		default:
		}

		stream, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdownCh:
				return
			default:
				d.logger.Warn("accept failed", "error", err)
				continue
			}
		}

		d.inFlight.Add(1)
		go d.handleConn(ctx, stream)
	}
}

func (d *Daemon) handleConn(ctx context.Context, s ipc.Stream) {
	connID := uuid.NewString()
	logger := d.logger.With("conn_id", connID)
	defer d.inFlight.Done()
	defer s.Close()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in dispatch task", "panic", r)
		}
	}()

	conn := ipc.NewConn(s)
	req, err := conn.ReadRequest()
	if err != nil {
		logger.Warn("malformed request", "error", err)
		_ = conn.WriteResponse(protocol.ErrorResponse(mcperr.KindBadRequest.Code(), err.Error()))
		return
	}

	d.touch()
	metrics.RequestsDispatched.WithLabelValues(string(req.Kind)).Inc()

	resp := d.dispatch(ctx, req)
	if err := conn.WriteResponse(resp); err != nil {
		logger.Warn("write response failed", "error", err)
	}

	if req.Kind == protocol.RequestShutdown {
		// beginShutdown blocks on inFlight.Wait(), and this connection is
		// itself counted in inFlight until handleConn returns — calling it
		// synchronously here would deadlock until gracePeriod expires on
		// every shutdown. Running it in its own goroutine lets the deferred
		// inFlight.Done() above fire as soon as this function returns.
		go d.beginShutdown()
	}
}

// dispatch implements spec.md §4.D's dispatch table.
func (d *Daemon) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Kind {
	case protocol.RequestPing:
		return protocol.PongResponse()

	case protocol.RequestGetConfigFingerprint:
		return protocol.ConfigFingerprintResponse(d.fingerprint)

	case protocol.RequestListServers:
		return protocol.ServerListResponse(d.pool.ListServers())

	case protocol.RequestListTools:
		tools, err := d.pool.ListTools(ctx, req.ServerName)
		if err != nil {
			return errResponse(err)
		}
		return protocol.ToolListResponse(tools)

	case protocol.RequestExecuteTool:
		result, err := d.pool.CallTool(ctx, req.ServerName, req.ToolName, req.Arguments)
		if err != nil {
			return errResponse(err)
		}
		return protocol.ToolResultResponse(result)

	case protocol.RequestShutdown:
		return protocol.ShutdownAckResponse()

	default:
		return protocol.ErrorResponse(mcperr.KindBadRequest.Code(), "unknown request kind")
	}
}

func errResponse(err error) protocol.Response {
	kind := mcperr.KindOf(err)
	return protocol.ErrorResponse(kind.Code(), err.Error())
}

func (d *Daemon) touch() {
	d.lastActivity.Store(time.Now().UnixNano())
}

func (d *Daemon) watchIdle(ctx context.Context) {
	ttl := time.Duration(d.cfg.DaemonTTL) * time.Second
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdownCh:
			return
		case <-ticker.C:
			last := time.Unix(0, d.lastActivity.Load())
			idle := time.Since(last)
			metrics.IdleSeconds.Set(idle.Seconds())
			if idle > ttl {
				d.logger.Info("idle timeout reached, shutting down", "idle", idle, "ttl", ttl)
				d.beginShutdown()
				return
			}
		}
	}
}

func (d *Daemon) watchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		d.logger.Info("received signal, shutting down", "signal", sig)
		d.beginShutdown()
	case <-d.shutdownCh:
	}
}

// beginShutdown stops accepting new connections, closes the listener so
// Accept unblocks, and gives in-flight dispatches gracePeriod to finish.
func (d *Daemon) beginShutdown() {
	d.shutdownOnce.Do(func() {
		close(d.shutdownCh)
		d.listener.Close()

		done := make(chan struct{})
		go func() {
			d.inFlight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(gracePeriod):
			d.logger.Warn("grace period expired with dispatches still in flight")
		}
		d.pool.Close()
	})
}

// cleanup removes the pid/fingerprint sidecars and the endpoint file
// itself, on every exit path — spec.md §4.D.
func (d *Daemon) cleanup() {
	ipcpath.RemoveSidecars(d.endpoint)
	if err := os.Remove(d.endpoint); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("remove endpoint file failed", "error", err)
	}
}
