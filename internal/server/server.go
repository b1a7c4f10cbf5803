// Package server implements the HTTP mediation surface: Bearer-authenticated
// routes for submitting tasks, polling session state, and retrieving
// redacted excerpts/logs/artifacts, backed by the session store, the
// single-slot gate, and the background supervisor invocation.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/workspace/agent-gateway/internal/config"
	"github.com/workspace/agent-gateway/internal/gate"
	"github.com/workspace/agent-gateway/internal/index"
	"github.com/workspace/agent-gateway/internal/store"
)

// Server is the HTTP mediation gateway.
type Server struct {
	cfg         *config.Config
	bridgeToken string
	store       *store.Store
	idx         *index.Index
	gate        *gate.Gate
	httpServer  *http.Server
	limiter     *pollLimiter

	cancelMu    sync.Mutex
	cancelFlags map[string]*atomicBool
}

// New wires the HTTP mediation gateway from its collaborators.
func New(cfg *config.Config, st *store.Store, idx *index.Index) *Server {
	s := &Server{
		cfg:         cfg,
		bridgeToken: cfg.BridgeToken,
		store:       st,
		idx:         idx,
		gate:        gate.New(),
		limiter:     newPollLimiter(5, 10),
		cancelFlags: make(map[string]*atomicBool),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ListenPort),
		Handler:      requestIDMiddleware(s.authMiddleware(mux)),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)

	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/sessions", s.handleListSessions)

	mux.Handle("GET /v1/sessions/{id}/state", s.limiter.middleware(http.HandlerFunc(s.handleGetState)))
	mux.HandleFunc("POST /v1/sessions/{id}/abort", s.handleAbort)
	mux.Handle("GET /v1/sessions/{id}/excerpt", s.limiter.middleware(http.HandlerFunc(s.handleExcerpt)))
	mux.HandleFunc("GET /v1/sessions/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /v1/sessions/{id}/artifacts/{name}", s.handleGetArtifact)
	mux.Handle("GET /v1/sessions/{id}/logtail", s.limiter.middleware(http.HandlerFunc(s.handleLogtail)))
}

// Start binds the listener and serves until Stop is called or the process
// is killed. Sessions left "running" from a prior crash must already have
// been rewritten to "aborted" by the caller (see cmd entrypoint) before
// Start is invoked.
func (s *Server) Start() error {
	slog.Info("starting agent gateway", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if id, ok := s.gate.ActiveSessionID(); ok {
		body["active_session"] = id
	} else {
		body["active_session"] = nil
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":      s.cfg.Version,
		"agent_binary": s.cfg.AgentBinary,
	})
}

// atomicBool is a small bool guarded by its own mutex, used for the
// advisory per-session cancellation flag the abort route flips and the
// supervisor's progress path polls.
type atomicBool struct {
	mu  sync.Mutex
	val bool
}

func (a *atomicBool) set(v bool) {
	a.mu.Lock()
	a.val = v
	a.mu.Unlock()
}

func (a *atomicBool) get() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.val
}
