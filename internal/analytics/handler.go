package analytics

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
)

// Handler exposes the aggregator's running totals over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/queries", h.Queries)
}

// Stats serves GET /api/v1/analytics. The optional top parameter shortens
// both query rankings.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	stats := h.aggregator.Stats()
	stats.TopQueries = truncate(stats.TopQueries, limit)
	stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, limit)
	h.writeJSON(w, http.StatusOK, stats)
}

type queriesResponse struct {
	Kind    string       `json:"kind"`
	Queries []QueryCount `json:"queries"`
}

// Queries serves GET /api/v1/analytics/queries?kind=top|zero_result&top=N.
func (h *Handler) Queries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	stats := h.aggregator.Stats()
	kind := r.URL.Query().Get("kind")
	var queries []QueryCount
	switch kind {
	case "", "top":
		kind, queries = "top", stats.TopQueries
	case "zero_result":
		queries = stats.ZeroResultQueries
	default:
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"kind must be top or zero_result, got %q", kind))
		return
	}
	h.writeJSON(w, http.StatusOK, queriesResponse{Kind: kind, Queries: truncate(queries, limit)})
}

// parseLimit reads the top parameter. Zero means no extra limit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > topQueriesLimit {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"top must be between 1 and %d", topQueriesLimit)
	}
	return n, nil
}

func truncate(queries []QueryCount, limit int) []QueryCount {
	if limit > 0 && len(queries) > limit {
		return queries[:limit]
	}
	return queries
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "analytics unavailable"
	if status < http.StatusInternalServerError {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
		} else {
			message = err.Error()
		}
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
