// Package api exposes assistant sessions and card projections over HTTP.
package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/service"
)

// maxUploadBytes bounds multipart message uploads.
const maxUploadBytes = 10 << 20

// Config wires a Server.
type Config struct {
	Sessions       *assistant.SessionManager
	Cards          service.CardStore
	Now            func() time.Time
	// TLS, when set, makes Start serve HTTPS.
	TLS            *tls.Config
	Addr           string
	AllowedOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	sessions   *assistant.SessionManager
	cards      service.CardStore
	now        func() time.Time
}

// New creates a server and its routes.
func New(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		sessions: cfg.Sessions,
		cards:    cfg.Cards,
		now:      cfg.Now,
	}
	s.setupRouter(cfg.AllowedOrigins)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Remote answers and defense generation can take a while.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    cfg.TLS,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter(allowedOrigins []string) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteSession)
				r.Get("/messages", s.handleListMessages)
				r.Post("/messages", s.handleSendMessage)
				r.Post("/messages/{messageID}/confirm", s.handleConfirm)
				r.Post("/messages/{messageID}/cancel", s.handleCancel)
			})
		})
		r.Get("/cards/{cardID}/projection", s.handleProjection)
	})

	s.router = r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	if s.httpServer.TLSConfig != nil {
		slog.Info("API server starting", "addr", s.httpServer.Addr, "tls", true)
		return s.httpServer.ListenAndServeTLS("", "")
	}
	slog.Info("API server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		logger := slog.Default().With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(common.WithLogger(r.Context(), logger)))
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure reports err with its mapped status. Internal failures are
// logged in full and only their user message reaches the client.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		respondError(w, status, err.Error())
		return
	}
	common.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
	respondError(w, status, common.UserMessage(err, "internal error"))
}
