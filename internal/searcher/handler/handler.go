// Package handler is the HTTP boundary of the search service. It renders
// engine results as JSON and never exposes engine internals.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/middleware"
)

type SearchExecutor interface {
	Parse(query string) *parser.QueryPlan
	Snapshot() (*executor.Engine, error)
	ExecuteOn(ctx context.Context, engine *executor.Engine, plan *parser.QueryPlan) *executor.SearchResult
}

type Handler struct {
	executor  SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. queryCache, collector and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search API on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?query=... A missing or blank query, or
// one made only of stop words, yields an empty result list.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("query")
	plan := h.executor.Parse(query)
	if plan.Empty() {
		h.countQuery("empty_query")
		h.track(ctx, analytics.SearchEvent{Query: query}, plan, 0, 0, false, start)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:   query,
			Results: []executor.Hit{},
			Took:    took(start),
		})
		return
	}

	engine, err := h.executor.Snapshot()
	if err != nil {
		h.countQuery("error")
		log.Error("search unavailable", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	var result *executor.SearchResult
	cacheHit := false
	cacheStatus := "disabled"
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, engine.Generation(), plan, func() (*executor.SearchResult, error) {
			return h.executor.ExecuteOn(ctx, engine, plan), nil
		})
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result = h.executor.ExecuteOn(ctx, engine, plan)
	}
	if err != nil {
		h.countQuery("error")
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, err)
		return
	}

	result.Query = query
	result.Took = took(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	}
	if result.TotalHits == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}

	log.Info("search completed",
		"query", query,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"took", result.Took,
	)
	h.track(ctx, analytics.SearchEvent{Query: query, Generation: result.Generation},
		plan, result.TotalHits, len(result.Results), cacheHit, start)

	h.writeJSON(w, http.StatusOK, result)
}

// IndexInfo serves GET /api/v1/index: the served generation and its stats.
func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	engine, err := h.executor.Snapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}
	s := engine.Store()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": s.Generation(),
		"stats":      s.Stats(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) track(ctx context.Context, event analytics.SearchEvent, plan *parser.QueryPlan, total, returned int, cacheHit bool, start time.Time) {
	if h.collector == nil {
		return
	}
	event.Type = analytics.EventTypeFor(plan.Terms, total)
	event.Terms = plan.Terms
	event.TotalHits = total
	event.Returned = returned
	event.CacheHit = cacheHit
	event.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	event.Timestamp = time.Now().UTC()
	event.RequestID = middleware.GetRequestID(ctx)
	h.collector.Track(event)
}

func (h *Handler) countQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

// took renders elapsed seconds with two decimals.
func took(start time.Time) string {
	return fmt.Sprintf("%.2f", time.Since(start).Seconds())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "search failed"
	switch {
	case errors.Is(err, apperrors.ErrIndexNotLoaded):
		message = "index not loaded"
	case status < http.StatusInternalServerError:
		message = err.Error()
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
