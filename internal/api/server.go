// Package api provides the HTTP surface for aide: a chat endpoint, a
// websocket for interactive sessions, and OAuth plumbing for Google.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/aidehq/aide/internal/dialog"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/logging"
)

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	orchestrator *dialog.Orchestrator
	oauth        *gcal.OAuthClient
	tokenPath    string

	log *logging.Logger
}

// Config for the server.
type Config struct {
	Host         string
	Port         int
	Orchestrator *dialog.Orchestrator
	OAuth        *gcal.OAuthClient
	TokenPath    string
}

// New creates an API server.
func New(cfg Config) *Server {
	s := &Server{
		orchestrator: cfg.Orchestrator,
		oauth:        cfg.OAuth,
		tokenPath:    cfg.TokenPath,
		log:          logging.WithField("component", "api"),
	}
	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/chat", s.handleChat)

		r.Get("/oauth/google/url", s.handleOAuthURL)
		r.Get("/oauth/google/callback", s.handleOAuthCallback)
	})

	r.Get("/ws", s.handleWebSocket)

	s.router = r
}

// Start blocks serving HTTP until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("listening on http://%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChatRequest is the body of POST /api/chat. A missing session_id starts a
// new session.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// ChatResponse is the reply to one chat turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := s.orchestrator.HandleTurn(r.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		s.log.Error("chat turn failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, ChatResponse{
		SessionID: req.SessionID,
		Response:  answer,
	})
}

func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Google OAuth not configured")
		return
	}
	state := uuid.NewString()
	s.respondJSON(w, http.StatusOK, map[string]string{
		"auth_url": s.oauth.AuthURL(state),
		"state":    state,
	})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Google OAuth not configured")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.respondError(w, http.StatusBadRequest, "missing code")
		return
	}

	token, err := s.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "exchange failed: "+err.Error())
		return
	}
	if err := gcal.SaveToken(s.tokenPath, token); err != nil {
		s.respondError(w, http.StatusInternalServerError, "token save failed: "+err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Google account connected"})
}
