package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
)

// Conversation is the part of the orchestrator the control surface drives.
type Conversation interface {
	Capabilities() domain.Capabilities
	Toggle(ctx context.Context) error
	Submit(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error
	ShareCode(ctx context.Context) (string, error)
	Restore(ctx context.Context, code string) (bool, error)
	State(ctx context.Context) (domain.State, error)
	Turns(ctx context.Context) ([]domain.Turn, error)
	Profile(ctx context.Context) (domain.UserProfile, error)
}

type Options struct {
	Addr         string
	AuthToken    string
	ShareBaseURL string
	// RateLimit is the number of command requests per client per minute.
	RateLimit int
}

// Server is the HTTP control surface of the assistant.
type Server struct {
	opts        Options
	conv        Conversation
	credentials application.CredentialStore
	hub         *Hub
	logger      *slog.Logger

	server      *http.Server
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	mu          sync.Mutex
	running     bool
}

func NewServer(opts Options, conv Conversation, credentials application.CredentialStore, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		opts:        opts,
		conv:        conv,
		credentials: credentials,
		hub:         hub,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(opts.RateLimit, time.Minute),
	}

	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authorize(s.rateLimiter.Middleware(h))
	}

	s.mux.HandleFunc("POST /toggle", limited(s.handleToggle))
	s.mux.HandleFunc("POST /text", limited(s.handleText))
	s.mux.HandleFunc("POST /clear", limited(s.handleClear))
	s.mux.HandleFunc("GET /share", limited(s.handleShareCode))
	s.mux.HandleFunc("POST /share", limited(s.handleRestore))
	s.mux.HandleFunc("PUT /profile", limited(s.handleProfile))
	s.mux.HandleFunc("PUT /credential", limited(s.handleSaveCredential))
	s.mux.HandleFunc("DELETE /credential", limited(s.handleClearCredential))

	s.mux.HandleFunc("GET /state", s.authorize(s.handleState))
	s.mux.HandleFunc("GET /messages", s.authorize(s.handleMessages))
	s.mux.HandleFunc("GET /profile", s.authorize(s.handleGetProfile))
	s.mux.HandleFunc("GET /capabilities", s.authorize(s.handleCapabilities))
	s.mux.HandleFunc("GET /events", s.authorize(s.hub.ServeHTTP))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("control server starting", "addr", s.opts.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.hub.Close()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// authorize checks the X-Auth-Token header or the token query parameter
// when a token is configured. Without a token only same-origin or loopback
// pages may call in.
func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" && !sameOrigin(r) {
			s.logger.Warn("rejecting cross-origin request", "path", r.URL.Path, "origin", r.Header.Get("Origin"))
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if s.opts.AuthToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.opts.AuthToken {
				s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Toggle(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, r, http.StatusAccepted)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return
	}

	if err := s.conv.Submit(r.Context(), text); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("received typed utterance", "chars", len(text))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.conv.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type shareResponse struct {
	Code string `json:"code"`
	URL  string `json:"url,omitempty"`
}

func (s *Server) handleShareCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.conv.ShareCode(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := shareResponse{Code: code}
	if s.opts.ShareBaseURL != "" {
		resp.URL = application.ShareURL(s.opts.ShareBaseURL, code)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRestore accepts the code as the share query parameter or the body.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("share")
	if code == "" {
		data, err := io.ReadAll(io.LimitReader(r.Body, 16*1024))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		code = strings.TrimSpace(string(data))
	}
	if code == "" {
		http.Error(w, "missing share code", http.StatusBadRequest)
		return
	}
	if _, err := application.DecodeShareCode(code); err != nil {
		s.logger.Debug("ignoring malformed share code", "error", err)
		s.writeJSON(w, http.StatusOK, map[string]bool{"loaded": false})
		return
	}

	loaded, err := s.conv.Restore(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"loaded": loaded})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 16*1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var update domain.ProfileUpdate
	if err := sonic.Unmarshal(data, &update); err != nil {
		http.Error(w, "invalid profile", http.StatusBadRequest)
		return
	}

	if err := s.conv.UpdateProfile(r.Context(), update); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetProfile(w, r)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.conv.Profile(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	value := strings.TrimSpace(string(data))
	if value == "" {
		http.Error(w, "empty credential", http.StatusBadRequest)
		return
	}
	if err := s.credentials.Save(value); err != nil {
		s.logger.Error("saving credential", "error", err)
		http.Error(w, "failed to save credential", http.StatusInternalServerError)
		return
	}
	s.logger.Info("credential saved")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCredential(w http.ResponseWriter, _ *http.Request) {
	if err := s.credentials.Clear(); err != nil {
		s.logger.Error("clearing credential", "error", err)
		http.Error(w, "failed to clear credential", http.StatusInternalServerError)
		return
	}
	s.logger.Info("credential cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r, http.StatusOK)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	turns, err := s.conv.Turns(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]domain.Turn{"messages": turns})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.conv.Capabilities())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if _, err := s.conv.State(r.Context()); err != nil {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"status":      status,
		"subscribers": s.hub.Clients(),
	})
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, code int) {
	state, err := s.conv.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, code, map[string]domain.State{"state": state})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrMissingCredential):
		http.Error(w, "no credential stored", http.StatusPreconditionFailed)
	case errors.Is(err, application.ErrStopped):
		http.Error(w, "assistant stopped", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		s.logger.Error("handling request", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
