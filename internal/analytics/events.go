package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventEmptyQuery EventType = "empty_query"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	Generation string    `json:"generation"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  float64   `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// EventTypeFor classifies a search by its outcome.
func EventTypeFor(terms []string, totalHits int) EventType {
	switch {
	case len(terms) == 0:
		return EventEmptyQuery
	case totalHits == 0:
		return EventZeroResult
	default:
		return EventSearch
	}
}
