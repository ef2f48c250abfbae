// Package rpc wires the broker's capability graph onto the network: one
// gobwas/ws connection per peer, admission-gated by internal/resource and
// observed by internal/metrics.
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/lattice-io/pubsub-broker/internal/auth"
	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/metrics"
	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/resource"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

// Server accepts WebSocket connections at /ws and dispatches each one's RPC
// calls against a shared chunked log and shared topic/login stores. Every
// connection gets its own MessageService/TopicService/AuthService instance
// so that unsubscribe and login scope to the connection that made them.
type Server struct {
	addr   string
	logger zerolog.Logger

	log    *chunklog.Log[model.Message]
	topics *store.TopicStore
	logins *store.LoginStore
	issuer *auth.Issuer
	guard  *resource.Guard
	metrics *metrics.Collector

	deliveryIdleInterval time.Duration

	httpServer *http.Server
	listener   net.Listener

	mu          sync.Mutex
	connections map[*connection]struct{}
}

// Deps bundles the shared broker components a Server needs. All of them are
// constructed once at startup and shared across every accepted connection.
type Deps struct {
	Addr                 string
	Logger               zerolog.Logger
	Log                  *chunklog.Log[model.Message]
	Topics               *store.TopicStore
	Logins               *store.LoginStore
	Issuer               *auth.Issuer
	Guard                *resource.Guard
	Metrics              *metrics.Collector
	DeliveryIdleInterval time.Duration
}

// NewServer builds a Server from deps. Call ListenAndServe to start
// accepting connections.
func NewServer(deps Deps) *Server {
	return &Server{
		addr:                 deps.Addr,
		logger:               deps.Logger,
		log:                  deps.Log,
		topics:               deps.Topics,
		logins:               deps.Logins,
		issuer:               deps.Issuer,
		guard:                deps.Guard,
		metrics:              deps.Metrics,
		deliveryIdleInterval: deps.DeliveryIdleInterval,
		connections:          make(map[*connection]struct{}),
	}
}

// ListenAndServe binds addr and serves WebSocket upgrades at /ws and the
// Prometheus exposition at /metrics until ctx is canceled or Shutdown is
// called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: listen: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info().Str("address", s.addr).Msg("rpc server listening")

	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rpc: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and closes every live one,
// stopping its delivery loops so Post calls racing the shutdown don't leak
// goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if ok, reason := s.guard.Admit(); !ok {
		s.metrics.ConnectionsRejected.Inc()
		s.logger.Warn().Str("reason", reason).Msg("connection rejected by admission guard")
		http.Error(w, "server overloaded", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.guard.ConnectionOpened()
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()

	c := newConnection(conn, r.RemoteAddr, s.log, s)
	s.mu.Lock()
	s.connections[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		c.run(context.Background())

		s.mu.Lock()
		delete(s.connections, c)
		s.mu.Unlock()
		s.guard.ConnectionClosed()
		s.metrics.ConnectionsActive.Dec()
	}()
}
