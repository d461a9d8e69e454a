package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"childgen/internal/domain"
	"childgen/internal/imagegen"
	"childgen/internal/infra"
	"childgen/internal/metrics"
	"childgen/internal/middleware"
	"childgen/internal/uploads"
)

// Generator serves generation requests. *imagegen.Service satisfies it.
type Generator interface {
	HasCredentials() bool
	Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error)
}

type App struct {
	Config      *infra.Config
	Generator   Generator
	Uploads     uploads.Store
	Generations domain.GenerationRepository
	Metrics     *metrics.Metrics
	Logger      *infra.Logger

	now func() time.Time
}

func NewApp(cfg *infra.Config, gen Generator, store uploads.Store, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{
		Config:    cfg,
		Generator: gen,
		Uploads:   store,
		Logger:    logger,
		now:       time.Now,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Status  string `json:"status"`
	Success *bool  `json:"success,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, status, message string) {
	a.json(w, code, errorResponse{Error: message, Status: status})
}

func (a *App) log(r *http.Request) *infra.Logger {
	return middleware.LoggerFromContext(r.Context(), a.Logger)
}
