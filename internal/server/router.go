package server

import (
	"context"
	"net/http"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/api"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/handlers"
	"github.com/Saksha05/Invoices-Information-Extraction/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// Body limits used when RouterConfig leaves them unset.
const (
	DefaultMaxUploadBytes  int64 = 25 << 20
	DefaultMaxRequestBytes int64 = 2 << 20
)

type RouterConfig struct {
	// AuthValidator guards every route except /health. Nil disables auth.
	AuthValidator     middleware.AuthValidator
	MaxUploadBytes    int64
	MaxRequestBytes   int64
	Health            func(ctx context.Context) error
	DocumentHandler   *handlers.DocumentHandler
	QueryHandler      *handlers.QueryHandler
	ExtractionHandler *handlers.ExtractionHandler
	ClaimHandler      *handlers.ClaimHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	limits := middleware.BodyLimits{JSON: cfg.MaxRequestBytes, Upload: cfg.MaxUploadBytes}
	if limits.JSON <= 0 {
		limits.JSON = DefaultMaxRequestBytes
	}
	if limits.Upload <= 0 {
		limits.Upload = DefaultMaxUploadBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.BodyLimit(limits))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				api.JSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "unhealthy: " + err.Error()})
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Delete("/", cfg.DocumentHandler.Clear)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Post("/{id}/reingest", cfg.DocumentHandler.Reingest)
			r.Get("/{id}/chunks", cfg.DocumentHandler.Chunks)
			r.Post("/{id}/extract", cfg.ExtractionHandler.ExtractDocument)
			r.Get("/{id}/records", cfg.ExtractionHandler.Records)
		})
		r.Get("/stats", cfg.DocumentHandler.Stats)

		r.Post("/search", cfg.QueryHandler.Search)
		r.Post("/ask", cfg.QueryHandler.Ask)

		r.Post("/extract", cfg.ExtractionHandler.Extract)
		r.Get("/schemas", cfg.ExtractionHandler.Schemas)

		r.Route("/claims", func(r chi.Router) {
			r.Post("/validate", cfg.ClaimHandler.Validate)
			r.Post("/coverage", cfg.ClaimHandler.Coverage)
		})
	})

	return r
}
