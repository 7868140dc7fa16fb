package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"manifest/internal/http/handlers"
	"manifest/internal/infra"
	"manifest/internal/middleware"
)

type RouterOptions struct {
	Logger          *infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.RequestLogger(opts.Logger),
		middleware.AccessLog,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/", app.Health)
	r.Get("/v1/healthz", app.Health)

	limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	r.Route("/api/generations", func(r chi.Router) {
		r.With(limit).Post("/", app.CreateGeneration)
		r.Get("/{id}", app.GenerationStatus)
		r.Get("/{id}/video", app.GenerationVideo)
		r.Get("/{id}/image", app.GenerationImage)
	})

	return r
}
