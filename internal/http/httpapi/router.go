package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"childgen/internal/http/handlers"
	"childgen/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
	}
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger, app.Metrics),
		chimw.Recoverer,
		middleware.CORS(origins),
	)

	r.Get("/health", app.Health)
	r.Get("/test", app.Test)

	r.Post("/uploadImage", app.UploadImage)
	r.Post("/uploadAgingImage", app.UploadAgingImage)
	r.Get("/uploads/{userId}/{childKey}/{role}", app.GetUpload)

	r.Post("/generateChild", app.GenerateChild)
	r.Get("/generations", app.ListGenerations)

	if app.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	}

	return r
}
