package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crmauth/internal/auth"
	"crmauth/internal/storage"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	Service            *auth.Service
	Accounts           storage.AccountStore
	Logger             zerolog.Logger
	AllowedOrigins     []string
	LoginRatePerMinute int
	Ready              func(ctx context.Context) error
}

// Router builds the chi router exposing the auth endpoints plus health,
// readiness, and metrics.
func Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			if err := opts.Ready(req.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(opts.Service, opts.Accounts, opts.Logger)

	loginRate := opts.LoginRatePerMinute
	if loginRate <= 0 {
		loginRate = 10
	}

	r.Route("/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Throttled per source IP: failed-credential stuffing is cheap to
			// send and expensive to hash.
			r.Use(httprate.LimitByIP(loginRate, time.Minute))
			r.Post("/login", authHandler.Login)
		})

		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(opts.Service))
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Post("/password", authHandler.ChangePassword)
			r.Get("/me", authHandler.Me)
		})
	})

	return r
}
