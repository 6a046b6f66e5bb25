package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/pacemakerx/contest-tracker/internal/api/handler"
	"github.com/pacemakerx/contest-tracker/internal/cache"
	"github.com/pacemakerx/contest-tracker/internal/config"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Store   handler.Store
	Feed    handler.ContestFeed  // nil disables /contests
	Sweeps  handler.SweepTrigger // nil disables manual sweeps
	Cache   *cache.Cache
	Backend string
	Logger  *slog.Logger
}

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(deps Deps, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(deps.Store, deps.Feed, deps.Sweeps, deps.Cache, deps.Backend, deps.Logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Contests
		r.Get("/contests", h.GetContests)

		// Users and reminder preferences
		r.Post("/users", h.UpsertUser)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Get("/reminders", h.ListReminders)
			r.Put("/reminders", h.UpsertReminder)
			r.Delete("/reminders/{contestID}", h.DeleteReminder)
		})

		// Sweep
		r.Post("/reminders/sweep", h.TriggerSweep)
	})

	return r
}
