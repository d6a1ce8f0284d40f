// Package rpcapi is the RPC Surface of spec.md §4.6/§6: the gob/TCP
// transport, the per-connection Bootstrap/ClientService/WorkerUpstream
// state machine, the outbound WorkerControl implementation the driver's
// placement engine calls into, and the HTTP dashboard.
package rpcapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cuemby/rain/pkg/config"
	"github.com/cuemby/rain/pkg/driver"
	"github.com/cuemby/rain/pkg/events"
	"github.com/cuemby/rain/pkg/log"
)

// Server owns the listeners and the single reactor goroutine that drives
// *driver.Driver. Every driver mutation reached from a connection's read
// loop is funneled through submit so the driver's "same goroutine only"
// contract (pkg/driver's doc.go) holds regardless of how many connections
// are open.
type Server struct {
	driver *driver.Driver
	cfg    *config.Config
	broker *events.Broker
	logger zerolog.Logger

	inbox chan func()
	done  chan struct{}

	rpcListener  net.Listener
	httpListener net.Listener
}

// NewServer constructs a Server over d. broker may be nil, in which case
// the dashboard's /watch endpoint is disabled.
func NewServer(d *driver.Driver, cfg *config.Config, broker *events.Broker) *Server {
	return &Server{
		driver: d,
		cfg:    cfg,
		broker: broker,
		logger: log.WithComponent("rpcapi"),
		inbox:  make(chan func(), 256),
		done:   make(chan struct{}),
	}
}

// Listen opens both TCP endpoints (spec.md §6) and creates the ready file,
// if configured, once listening has succeeded.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen rpc control: %w", err)
	}
	s.rpcListener = l

	hl, err := net.Listen("tcp", s.cfg.DashboardAddr)
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("listen dashboard: %w", err)
	}
	s.httpListener = hl

	if s.cfg.ReadyFile != "" {
		f, err := os.Create(s.cfg.ReadyFile)
		if err != nil {
			return fmt.Errorf("create ready file: %w", err)
		}
		_ = f.Close()
	}
	return nil
}

// Serve runs the accept loops and the reactor until ctx is cancelled or
// the driver shuts itself down. Listen must have been called first.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 3)
	go func() { errCh <- s.serveRPC(ctx) }()
	go func() { errCh <- s.serveHTTP(ctx) }()
	go func() { errCh <- s.run(ctx) }()

	select {
	case err := <-errCh:
		close(s.done)
		return err
	case <-ctx.Done():
		close(s.done)
		return ctx.Err()
	}
}

// submit hands fn to the reactor goroutine, to be run before the next
// Turn. Safe to call from any connection's goroutine.
func (s *Server) submit(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// do submits fn and blocks until the reactor goroutine has run it,
// letting a connection handler read values fn assigned once it returns.
func (s *Server) do(fn func()) {
	done := make(chan struct{})
	s.submit(func() {
		fn()
		close(done)
	})
	<-done
}

// run is the reactor loop: drain one pending mutation, then give the
// driver a Turn; also Turn on a fixed tick so distribute_tasks keeps
// running even on a connection-quiet server (spec.md §4.5's turn() is
// "called once per reactor cycle" by the accept/poll loop).
func (s *Server) run(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	metricsTicker := time.NewTicker(15 * time.Second)
	defer metricsTicker.Stop()
	for {
		select {
		case fn := <-s.inbox:
			fn()
			if !s.driver.Turn(ctx) {
				return nil
			}
		case <-ticker.C:
			if !s.driver.Turn(ctx) {
				return nil
			}
		case <-metricsTicker.C:
			s.driver.CollectGraphMetrics()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// serveRPC accepts connections on the RPC control endpoint, pacing admission
// with a token bucket (SPEC_FULL.md §B) so a connection burst can't starve
// registration handling.
func (s *Server) serveRPC(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.AcceptRatePerSecond), s.cfg.AcceptBurst)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		nc, err := s.rpcListener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.logger.Error().Err(err).Msg("rpc accept failed")
			continue
		}
		if tc, ok := nc.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		go s.handleConnection(nc)
	}
}

// serveHTTP runs the dashboard (spec.md §6's second TCP endpoint).
func (s *Server) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	s.registerDashboard(mux)
	srv := &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.Serve(s.httpListener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleConnection owns one TCP connection for its lifetime: a Bootstrap
// starts unregistered, becomes a client or worker connection on the first
// successful registration call, and is torn down on disconnect (spec.md
// §4.6: "On connection drop, any Worker/Client created through it is
// removed").
func (s *Server) handleConnection(nc net.Conn) {
	defer func() { _ = nc.Close() }()

	rc := newRPCConn(nc)
	b := &bootstrapConn{server: s, conn: rc, remoteAddr: nc.RemoteAddr()}

	for {
		f, err := rc.codec.recv()
		if err != nil {
			rc.closeAll()
			b.onDisconnect()
			return
		}
		if f.Type != frameRequest {
			rc.dispatchResponse(f)
			continue
		}
		b.dispatch(f)
	}
}
