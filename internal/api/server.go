// Package api exposes the station-facing HTTP surface: packet ingestion,
// the latest published record, health and status. It is a thin shell over
// the publishing engine; requests never touch the aggregation buffer
// directly.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"skyfeed/internal/publish"
	"skyfeed/internal/types"
)

// Publisher is the slice of the publishing engine the API needs; injected
// for testability.
type Publisher interface {
	Submit(pkt types.Packet)
	Latest() *publish.Published
	Stats() publish.Stats
}

// Server wires the router, the publishing engine and the structured logger.
type Server struct {
	publisher Publisher
	logger    *slog.Logger
	validate  *validator.Validate
	router    *chi.Mux
}

// NewServer constructs the server and mounts all routes.
func NewServer(publisher Publisher, logger *slog.Logger) (*Server, error) {
	if publisher == nil {
		return nil, fmt.Errorf("api: publisher must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("api: logger must not be nil")
	}
	s := &Server{
		publisher: publisher,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		router:    chi.NewRouter(),
	}
	s.mountRoutes()
	return s, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) mountRoutes() {
	s.router.Use(s.recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/status", s.handleStatus)
	s.router.Get("/clientraw.txt", s.handleRecord)
	s.router.Post("/ingest", s.handleIngest)
}

// responseCapture wraps an http.ResponseWriter to capture the status code
// written by downstream handlers, for request logging.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController helpers.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// recoverer catches panics in the handler chain, logs the stack trace and
// returns a standardized 500. Outermost middleware in the chain.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal_error",
					"an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs request metadata (method, path, status, duration).
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rc, r)

		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rc.statusCode),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
