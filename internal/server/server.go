// Package server exposes the login API over REST, JSON-RPC 2.0 and
// JSON-RPC over WebSocket.
package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/warpdl/warpcas/internal/api"
	"github.com/warpdl/warpcas/internal/metrics"
	"github.com/warpdl/warpcas/pkg/logger"
)

type Server struct {
	log     logger.Logger
	api     *api.Api
	metrics *metrics.Metrics
	rpc     *RPCServer
	addr    string

	mu     sync.Mutex
	server *http.Server
}

// NewServer builds the HTTP surface of a. m may be nil, in which case
// /metrics is not served.
func NewServer(l logger.Logger, a *api.Api, m *metrics.Metrics, addr string, rpcCfg *RPCConfig) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if rpcCfg == nil {
		rpcCfg = &RPCConfig{}
	}
	return &Server{
		log:     l,
		api:     a,
		metrics: m,
		rpc:     NewRPCServer(rpcCfg, a),
		addr:    addr,
	}
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/portals", s.handlePortals)
	mux.HandleFunc("POST /api/login/{portal}", s.handleLogin)
	mux.HandleFunc("POST /api/vpn/login", s.handleVPNLogin)
	mux.HandleFunc("GET /api/captcha/required", s.handleCaptchaRequired)
	mux.HandleFunc("POST /api/captcha/verify", s.handleCaptchaVerify)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("/jsonrpc", s.rpc.HTTPHandler())
	mux.Handle("/jsonrpc/ws", s.rpc.WSHandler())
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the WebSocket upgrade needs.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.ToStdLogger(s.log),
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("listening on %s", s.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the server and the RPC bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.rpc.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
