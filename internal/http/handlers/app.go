package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"manifest/internal/domain"
	"manifest/internal/infra"
	"manifest/internal/middleware"
	"manifest/internal/orchestrator"
)

// Generations is the part of the orchestrator the handlers drive.
type Generations interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (orchestrator.SubmitResult, error)
	GetStatus(id string) (orchestrator.StatusView, error)
	GetArtifact(id string) (*os.File, string, error)
	GetSourceImage(id string) (*os.File, string, error)
}

type App struct {
	Generations    Generations
	MaxUploadBytes int64
	Logger         *infra.Logger
}

func NewApp(gen Generations, maxUploadBytes int64, logger *infra.Logger) *App {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 15 << 20
	}
	return &App{Generations: gen, MaxUploadBytes: maxUploadBytes, Logger: infra.OrNop(logger)}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": errorBody{Code: code, Message: message}})
}

// fail maps an orchestrator error onto its HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *orchestrator.ValidationError
	switch {
	case errors.As(err, &verr):
		a.json(w, http.StatusBadRequest, map[string]any{"error": errorBody{
			Code:    "validation_failed",
			Message: "request validation failed",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrPaymentRequired):
		a.error(w, http.StatusPaymentRequired, "payment_required", "a paid checkout session is required for full mode")
	case errors.Is(err, domain.ErrCapacity):
		w.Header().Set("Retry-After", "30")
		a.error(w, http.StatusTooManyRequests, "capacity", "too many generations in flight, try again shortly")
	case errors.Is(err, domain.ErrConfiguration):
		a.error(w, http.StatusServiceUnavailable, "not_configured", "video generation is not configured")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "generation not found")
	default:
		middleware.FromRequest(r).Error().Err(err).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
