package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"manifest/internal/infra"
)

// RequestLogger stores a child of base tagged with the chi request id in the
// request context, retrievable with zerolog.Ctx. It must run after
// middleware.RequestID.
func RequestLogger(base *infra.Logger) func(http.Handler) http.Handler {
	base = infra.OrNop(base)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := middleware.GetReqID(r.Context())
			if rid != "" {
				w.Header().Set(middleware.RequestIDHeader, rid)
			}
			l := base.With().Str("request_id", rid).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

// FromRequest returns the request-scoped logger.
func FromRequest(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}
