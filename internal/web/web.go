package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shiftplan/internal/apperror"
	"shiftplan/internal/config"
	appLog "shiftplan/internal/log"
	"shiftplan/internal/model"
	"shiftplan/internal/session"
)

// EventReader reads back events already written to a calendar.
type EventReader interface {
	Events(ctx context.Context, calendarID string, loc *time.Location) ([]model.MaterializedEvent, error)
}

// Server is the HTTP shell of the wizard. It drives one Session.
type Server struct {
	cfg     *config.Config
	session *session.Session
	events  EventReader
	router  *chi.Mux
}

// NewServer constructs a new Server. events may be nil, in which case
// calendar read-back is not offered.
func NewServer(cfg *config.Config, sess *session.Session, events EventReader) *Server {
	s := &Server{
		cfg:     cfg,
		session: sess,
		events:  events,
		router:  chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="shiftplan", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the wizard on cfg.Listen until ctx is cancelled, then
// shuts the server down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, sess *session.Session, events EventReader) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, sess, events).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/presets", s.handlePresets)
		r.Post("/range", s.handleRange)
		r.Post("/enter", s.handleEnter)
		r.Post("/undo", s.handleUndo)
		r.Post("/edit", s.handleEdit)
		r.Post("/discard", s.handleDiscard)
		r.Post("/import", s.handleImport)
		r.Get("/export.ics", s.handleExport)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Put("/", s.handleSaveTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Route("/calendars", func(r chi.Router) {
			r.Get("/", s.handleCalendars)
			r.Get("/{id}/events", s.handleCalendarEvents)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// writeError maps err to its AppError status. Anything else is logged and
// reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperror.SafeCode(err)
	if code >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
	} else {
		appLog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, errorResponse{
		Type:    apperror.SafeType(err),
		Message: apperror.SafeMessage(err),
	})
}

// decodeJSON reads the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.NewValidation("invalid request body: " + err.Error())
	}
	return nil
}
