package rpcapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/cuemby/rain/pkg/health"
	"github.com/cuemby/rain/pkg/metrics"
)

// registerDashboard wires up the HTTP dashboard's routes on the second TCP
// endpoint (spec.md §6): health probes, Prometheus metrics, and a
// websocket feed of graph events for a live-watch UI.
func (s *Server) registerDashboard(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/watch", s.handleWatch)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports ready only once the RPC control endpoint is
// actually accepting connections, checked with a TCPChecker against the
// listener's own address rather than trusting that Listen succeeded
// earlier in the process's lifetime.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checker := health.NewTCPChecker(s.rpcListener.Addr().String())
	result := checker.Check(r.Context())
	if !result.Healthy {
		http.Error(w, result.Message, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var dashboardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWatch streams events.Event values as JSON to a websocket client
// for as long as the connection stays open. Disabled if no broker was
// configured.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		http.Error(w, "event stream not enabled", http.StatusNotImplemented)
		return
	}

	conn, err := dashboardUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	for ev := range sub {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
