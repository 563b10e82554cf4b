package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/config"
	"github.com/recast/recast/internal/handler"
	"github.com/recast/recast/internal/middleware"
)

// routerDeps carries everything the router mounts.
type routerDeps struct {
	root      *handler.Handler
	health    *handler.HealthHandler
	metrics   *handler.MetricsHandler
	repurpose *handler.RepurposeHandler
	sessions  *handler.SessionHandler
	account   *handler.AccountHandler
	auth      auth.Authenticator
	limiter   middleware.Limiter
	cfg       *config.Config
	logger    *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	if d.cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	security := middleware.DefaultSecurityConfig()
	security.IsDevelopment = d.cfg.IsDevelopment()
	if d.cfg.MaxRequestBodySize > 0 {
		security.MaxRequestBodySize = d.cfg.MaxRequestBodySize
	}
	r.Use(middleware.Security(security))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.cfg.GetCORSAllowedOrigins())))
	r.Use(middleware.MaxBodySize(security.MaxRequestBodySize))

	// Probes and info (no auth)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)
	r.Get("/", d.root.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      d.logger,
		Limiter:     d.limiter,
		UserEnabled: d.cfg.RateLimitUserEnabled,
		IPEnabled:   d.cfg.RateLimitAuthEnabled,
		IPRPS:       d.cfg.RateLimitAuthRPS,
		IPBurst:     d.cfg.RateLimitAuthBurst,
	}

	r.Route("/api", func(r chi.Router) {
		// Sign-in flows (no auth)
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/signup", d.sessions.Signup)
			r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/login", d.sessions.Login)
			r.Post("/logout", d.sessions.Logout)
			r.Get("/google", d.sessions.GoogleBegin)
			r.Get("/google/callback", d.sessions.GoogleCallback)
		})

		// Authenticated routes: session cookie, session bearer token or API key
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.auth, d.logger))

			r.Get("/me", d.account.Me)
			r.Get("/jobs", d.account.ListJobs)
			r.With(middleware.RateLimitUser(rateLimitCfg)).Post("/repurpose", d.repurpose.Repurpose)

			r.Route("/keys", func(r chi.Router) {
				r.Get("/", d.account.ListAPIKeys)
				r.With(middleware.RequireSession()).Post("/", d.account.CreateAPIKey)
				r.With(middleware.RequireSession()).Delete("/{key_id}", d.account.RevokeAPIKey)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.root.NotFound)
	r.MethodNotAllowed(d.root.MethodNotAllowed)

	return r
}
