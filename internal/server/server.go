// Package server provides the HTTP API, the live result stream and the
// metrics endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server dependencies. Routes whose dependency is nil are
// not registered.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Recognizer api.Recognizer
	Settings   api.SettingsService
	Plugins    api.PluginLookup
	Hub        *Hub
	Preview    PreviewSource
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Server is the mudra HTTP server.
type Server struct {
	config  Config
	router  chi.Router
	handler http.Handler
	logger  *slog.Logger
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logging.OrDefault(config.Logger),
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = otelhttp.NewHandler(s.router, "mudra",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// long-lived streams would produce one endless span each
			return r.URL.Path != "/api/results" && r.URL.Path != "/api/stream"
		}))
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/health", s.handleHealth)

	if s.config.Recognizer != nil {
		api.NewRecognizerHandler(s.config.Recognizer).Routes(r)
	}
	if s.config.Settings != nil {
		r.Route("/api/settings", api.NewSettingsHandler(s.config.Settings).Routes)
	}
	if s.config.Store != nil {
		r.Route("/api/events", api.NewEventHandler(s.config.Store).Routes)
		r.Route("/api/bindings", api.NewBindingHandler(s.config.Store, s.config.Plugins).Routes)
	}
	if s.config.Hub != nil {
		r.Get("/api/results", s.config.Hub.ServeHTTP)
	}
	if s.config.Preview != nil {
		r.Get("/api/stream", NewStreamHandler(s.config.Preview).ServeHTTP)
	}
	if s.config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// logRequests logs each request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
