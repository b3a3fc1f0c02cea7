// Package web provides the HTTP server and handlers for the CSV cleaner UI
// and API.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/history"
	"github.com/JonMunkholm/csvclean/internal/metrics"
	appmw "github.com/JonMunkholm/csvclean/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed static
var staticFiles embed.FS

// Options carries the optional collaborators of a Server.
type Options struct {
	// History lists recent runs for GET /api/history. Defaults to history.Nop.
	History history.Lister

	// Metrics counts requests. Nil disables request metrics.
	Metrics *metrics.Metrics

	// Gatherer is served on /metrics when metrics are enabled.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP server for the CSV cleaner.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	history  history.Lister
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	router   *chi.Mux
	handler  http.Handler
	server   *http.Server
	limiters []*appmw.RateLimiter
}

// NewServer creates a Server with its middleware and routes in place.
func NewServer(service *core.Service, cfg *config.Config, opts Options) (*Server, error) {
	s := &Server{
		service:  service,
		cfg:      cfg,
		history:  opts.History,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		router:   chi.NewRouter(),
	}
	if s.history == nil {
		s.history = history.Nop{}
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		s.stopLimiters()
		return nil, err
	}

	s.handler = otelhttp.NewHandler(s.router, "csvclean",
		otelhttp.WithFilter(traced),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s, nil
}

// traced leaves probes and scrapes out of the traces.
func traced(r *http.Request) bool {
	return r.URL.Path != "/healthz" && r.URL.Path != metrics.MetricsPath
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled && s.gatherer != nil {
		s.router.Handle(metrics.MetricsPath, metrics.Handler(s.gatherer))
	}

	// Cleaning runs get a stricter per-IP limit than page loads.
	cleaning := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		cleaning = s.newLimiter(s.cfg.Rate.UploadLimit).Middleware
	}

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.With(cleaning).Post("/upload", s.handleUpload)

	// API
	s.router.Route("/api", func(r chi.Router) {
		r.Use(appmw.APIKeyAuth(s.cfg.Security))

		r.With(cleaning).Post("/clean", s.handleAPIClean)
		r.Get("/history", s.handleHistory)
		r.Get("/status", s.handleStatus)
	})

	return nil
}

func (s *Server) newLimiter(perMinute int) *appmw.RateLimiter {
	rl := appmw.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

func (s *Server) stopLimiters() {
	for _, rl := range s.limiters {
		rl.Stop()
	}
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopLimiters()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full handler chain, tracing included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// contentSecurityPolicy allows only same-origin resources. The pages use no
// scripts and a single stylesheet.
const contentSecurityPolicy = "default-src 'self'; script-src 'none'; style-src 'self'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP && !strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}
