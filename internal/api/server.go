package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/dusseldorf/internal/session"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/rs/zerolog/log"
)

// Version reported by the public info endpoint.
const Version = "2.0.0"

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string
	SessionTTL  time.Duration
}

// Server is the management API server. Every zone-scoped read and
// mutation it exposes passes a permission check before acting.
type Server struct {
	store    storage.Backend
	sessions *session.Store
	cfg      Config
	httpSrv  *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(store storage.Backend, cfg Config) *Server {
	return &Server{
		store:    store,
		sessions: session.NewStore(store, cfg.SessionTTL),
		cfg:      cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(newRateLimiter(100, 200).middleware)

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/", s.InfoHandler)
		r.Get("/health", s.HealthHandler)
		r.Post("/auth/login", s.LoginHandler)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.sessions))

		r.Get("/ping", s.PingHandler)
		r.Post("/auth/logout", s.LogoutHandler)

		r.Get("/domains", s.DomainListHandler)

		r.Post("/zones", s.ZoneCreateHandler)
		r.Get("/zones", s.ZoneListHandler)
		r.Get("/zones/{fqdn}", s.ZoneGetHandler)
		r.Delete("/zones/{fqdn}", s.ZoneDeleteHandler)

		r.Get("/zones/{fqdn}/permissions", s.PermissionListHandler)
		r.Put("/zones/{fqdn}/permissions", s.PermissionSetHandler)
		r.Delete("/zones/{fqdn}/permissions/{alias}", s.PermissionRemoveHandler)

		r.Get("/zones/{fqdn}/rules", s.RuleListHandler)
		r.Post("/zones/{fqdn}/rules", s.RuleCreateHandler)
		r.Delete("/zones/{fqdn}/rules/{ruleid}", s.RuleDeleteHandler)
		r.Put("/zones/{fqdn}/rules/{ruleid}/priority", s.RulePriorityHandler)
		r.Post("/zones/{fqdn}/rules/{ruleid}/components", s.ComponentAddHandler)
		r.Delete("/zones/{fqdn}/rules/{ruleid}/components/{componentid}", s.ComponentRemoveHandler)

		r.Get("/requests/{zone}", s.RequestListHandler)
		r.Get("/requests/{zone}/{timestamp}", s.RequestGetHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		s.httpSrv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
