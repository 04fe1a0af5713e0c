package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandboxy-go/sandboxy/internal/agentiface"
	"github.com/sandboxy-go/sandboxy/internal/mdl"
	"github.com/sandboxy-go/sandboxy/internal/session"
)

// AgentFactory resolves an agent_id from a start frame into a concrete
// agentiface.Agent. cmd/sandboxctl wires this to its resolveAgent
// function (a stub agent for "stub" or an empty id, an OpenAI-backed
// agent for any other id).
type AgentFactory func(agentID string) (agentiface.Agent, error)

// ModuleStore resolves a module_id into its parsed, validated module.
type ModuleStore func(moduleID string) (*mdl.Module, error)

// Server hosts the interactive session WebSocket endpoint and a
// Prometheus-compatible health/metrics surface, mirroring the shape of
// the teacher's internal/web.Server (mux + handlers + graceful Start).
type Server struct {
	mux       *http.ServeMux
	sessions  *session.Manager
	modules   ModuleStore
	agents    AgentFactory
	startTime time.Time
}

// NewServer wires the session endpoint and health handler onto a fresh
// mux. metricsHandler is typically promhttp.Handler(), injected by the
// caller to keep this package free of a direct promhttp dependency.
func NewServer(sessions *session.Manager, modules ModuleStore, agents AgentFactory, metricsHandler http.Handler) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		sessions:  sessions,
		modules:   modules,
		agents:    agents,
		startTime: time.Now(),
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	if metricsHandler != nil {
		s.mux.Handle("/metrics", metricsHandler)
	}
	return s
}

// TestHandler exposes the server's mux for tests that drive it through
// httptest.NewServer rather than through Start's real listener.
func (s *Server) TestHandler() http.Handler {
	return s.mux
}

// Start begins listening with graceful shutdown on SIGINT/SIGTERM,
// matching the teacher's internal/web/server.go Start behavior (10s
// shutdown grace period, 127.0.0.1 default host).
func (s *Server) Start() error {
	port := os.Getenv("SANDBOXY_WEB_PORT")
	if port == "" {
		port = "8080"
	}
	host := os.Getenv("SANDBOXY_WEB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	addr := host + ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[Web] received signal %v, shutting down", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Web] graceful shutdown error: %v", err)
		}
	}()

	log.Printf("[Web] sandboxy session server running at http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Println("[Web] server stopped gracefully")
		return nil
	}
	return err
}

type healthResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ActiveSessions int    `json:"active_sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		ActiveSessions: len(s.sessions.List()),
	}
	_ = writeJSON(w, resp)
}
