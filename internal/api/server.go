// Package api provides the HTTP API server and handlers for the bookshare application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Arax734/bookshare-app-sub001/internal/auth"
	"github.com/Arax734/bookshare-app-sub001/internal/config"
	"github.com/Arax734/bookshare-app-sub001/internal/metrics"
	"github.com/Arax734/bookshare-app-sub001/internal/ratelimit"
	"github.com/Arax734/bookshare-app-sub001/internal/sse"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	services   *Services
	verifier   auth.Verifier
	sseManager *sse.Manager
	limiter    *ratelimit.Limiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	cfg *config.Config,
	store *store.Store,
	services *Services,
	verifier auth.Verifier,
	sseManager *sse.Manager,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		store:      store,
		services:   services,
		verifier:   verifier,
		sseManager: sseManager,
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Bookshare API", "1.0.0")
	humaConfig.Info.Description = "Book catalog browsing, reviews, recommendations and book exchanges between contacts."
	// Bodies are returned as-is, without a "$schema" link.
	humaConfig.CreateHooks = nil
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"cookie": {
			Type: "apiKey",
			In:   "cookie",
			Name: SessionCookie,
		},
	}
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware())
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
	s.router.Use(s.authMiddleware)
}

// requestLogger logs each request at debug level through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// registerRoutes configures all HTTP routes.
func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerBookRoutes()
	s.registerRecommendationRoutes()
	s.registerUserRoutes()
	s.registerLibraryRoutes()
	s.registerContactRoutes()
	s.registerExchangeRoutes()
	s.registerNotificationRoutes()

	s.router.Handle("/metrics", metrics.Handler())

	if s.sseManager != nil {
		var snapshot sse.Snapshot
		if s.services.Notifications != nil {
			snapshot = s.services.Notifications.Snapshot
		}
		s.router.Get("/api/events", sse.NewHandler(s.sseManager, s.logger, userIDFrom, snapshot).ServeHTTP)
	}
}

// authenticated is the security requirement of routes behind a session.
var authenticated = []map[string][]string{{"bearer": {}}, {"cookie": {}}}
