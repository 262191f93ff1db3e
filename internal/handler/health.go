package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/connexus-ai/ragcore/internal/model"
	"github.com/connexus-ai/ragcore/internal/repository"
)

// VectorStorePinger is the subset of repository.VectorStore the status
// handler needs: a liveness check and per-collection counts.
type VectorStorePinger interface {
	Heartbeat(ctx context.Context) error
	Count(ctx context.Context, collection model.Collection, where *repository.Where) (int, error)
}

// UpstreamPinger checks connectivity to an embedding or LLM provider.
type UpstreamPinger interface {
	HealthCheck(ctx context.Context) error
}

// StatusDeps carries the dependencies GET /status reports on. Embedder
// and LLM may be nil (e.g. demo stand-ins expose no HealthCheck),
// in which case they are reported healthy without a live probe.
type StatusDeps struct {
	Store    VectorStorePinger
	Embedder UpstreamPinger
	LLM      UpstreamPinger
	Version  string
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status returns a handler for GET /status: reports vector store,
// embedding, and LLM health plus per-collection chunk counts.
func Status(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		overall := http.StatusOK

		store := probe(ctx, func(ctx context.Context) error { return deps.Store.Heartbeat(ctx) })
		if store.Status != "ok" {
			overall = http.StatusServiceUnavailable
		}

		embedding := probeUpstream(ctx, deps.Embedder)
		if embedding.Status != "ok" {
			overall = http.StatusServiceUnavailable
		}

		llm := probeUpstream(ctx, deps.LLM)
		if llm.Status != "ok" {
			overall = http.StatusServiceUnavailable
		}

		counts := map[model.Collection]int{}
		for _, collection := range model.Collections {
			n, err := deps.Store.Count(ctx, collection, nil)
			if err == nil {
				counts[collection] = n
			}
		}

		writeJSON(w, overall, map[string]any{
			"version":    deps.Version,
			"vector_store": store,
			"embedding":    embedding,
			"llm":          llm,
			"counts":       counts,
		})
	}
}

func probe(ctx context.Context, fn func(context.Context) error) componentStatus {
	if err := fn(ctx); err != nil {
		return componentStatus{Status: "degraded", Error: err.Error()}
	}
	return componentStatus{Status: "ok"}
}

func probeUpstream(ctx context.Context, p UpstreamPinger) componentStatus {
	if p == nil {
		return componentStatus{Status: "ok"}
	}
	return probe(ctx, p.HealthCheck)
}
