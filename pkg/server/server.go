// Package server exposes the HTTP API: the AI chat endpoint, the health
// check, and the compat accounting routes consumed by the web front end.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/comptaline/as400-ai-backend/pkg/agent"
	"github.com/comptaline/as400-ai-backend/pkg/store"
)

// Version reported by the health endpoint.
const Version = "2.0.0"

const serviceName = "as400-ai-backend"

// Server routes HTTP requests to the agent loop and the compat module.
type Server struct {
	loop        *agent.Loop
	store       store.Store
	displayMode string
	logger      *slog.Logger
	allowOrigin func(string) bool
	handler     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOriginChecker installs the CORS origin allow-list predicate.
func WithOriginChecker(allow func(string) bool) Option {
	return func(s *Server) {
		if allow != nil {
			s.allowOrigin = allow
		}
	}
}

// New builds the server. displayMode is the human-readable backend name shown
// by the health endpoint.
func New(loop *agent.Loop, st store.Store, displayMode string, opts ...Option) *Server {
	s := &Server{
		loop:        loop,
		store:       st,
		displayMode: displayMode,
		logger:      slog.Default(),
		allowOrigin: func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/compat/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/compat/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/compat/journals", s.handleListJournals)
	mux.HandleFunc("POST /api/compat/journals", s.handleCreateJournal)
	mux.HandleFunc("GET /api/compat/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/compat/entries", s.handleCreateEntries)
	mux.HandleFunc("GET /api/compat/reports/balance", s.handleBalanceReport)
	mux.HandleFunc("GET /api/compat/reports/grand-livre", s.handleGrandLivre)
	mux.HandleFunc("GET /api/compat/reports/fec", s.handleFEC)

	s.handler = s.withCORS(mux)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
