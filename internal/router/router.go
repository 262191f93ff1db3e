package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/connexus-ai/ragcore/internal/handler"
	"github.com/connexus-ai/ragcore/internal/middleware"
)

// Dependencies holds all injected services needed by the router.
type Dependencies struct {
	Version string

	StatusDeps handler.StatusDeps

	Registry handler.DocumentRegistry
	Store    handler.CollectionStore

	Pipeline handler.Ingester
	IngestCfg handler.IngestConfig
	Mirror    handler.ObjectMirror

	Search handler.Searcher
	QA     handler.Asker

	FrontendURL string
	Metrics     *middleware.Metrics
	MetricsReg  *prometheus.Registry
	RateLimiter *middleware.RateLimiter
}

// New creates and configures the Chi router with all routes.
func New(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(deps.FrontendURL))
	if deps.Metrics != nil {
		r.Use(middleware.Monitoring(deps.Metrics))
	}
	if deps.RateLimiter != nil {
		r.Use(middleware.RateLimit(deps.RateLimiter))
	}

	r.Get("/status", handler.Status(deps.StatusDeps))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", middleware.MetricsHandler(deps.MetricsReg))
	}

	timeout30s := middleware.Timeout(30 * time.Second)
	ingestTimeout := middleware.Timeout(120 * time.Second)

	r.With(timeout30s).Get("/api/documents", handler.ListDocuments(deps.Registry))
	r.With(timeout30s).Delete("/api/documents", handler.ClearDocuments(deps.Registry))
	r.With(timeout30s).Get("/api/collections", handler.Collections(deps.Store))

	r.With(ingestTimeout).Post("/api/process/upload", handler.Upload(deps.Pipeline, deps.IngestCfg, deps.Mirror))
	r.With(ingestTimeout).Post("/api/process/{filename}/summaries", handler.Summaries(deps.Pipeline))
	r.With(ingestTimeout).Post("/api/process/{filename}/paragraphs", handler.Paragraphs(deps.Pipeline))

	r.With(timeout30s).Post("/api/search", handler.Search(deps.Search))
	r.With(timeout30s).Post("/api/ask", handler.Ask(deps.QA))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "route not found"})
	})

	return r
}
