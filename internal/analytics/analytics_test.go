package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (m *memoryPublisher) Publish(ctx context.Context, event kafka.Event) error {
	return m.PublishBatch(ctx, []kafka.Event{event})
}

func (m *memoryPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryPublisher) Close() error { return nil }

func (m *memoryPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventEmptyQuery, EventTypeFor(nil, 0))
	assert.Equal(t, EventZeroResult, EventTypeFor([]string{"dragon"}, 0))
	assert.Equal(t, EventSearch, EventTypeFor([]string{"sea"}, 4))
}

func TestCollectorPublishesAndDrains(t *testing.T) {
	pub := &memoryPublisher{}
	c := NewCollector(pub, 16)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Type: EventSearch, Query: "sea"})
	}
	assert.Eventually(t, func() bool { return pub.count() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	c.Close()
	assert.Equal(t, "search", pub.events[0].Key)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &memoryPublisher{}
	c := NewCollector(pub, 2)
	// Not started: the buffer fills up.
	for i := 0; i < 5; i++ {
		c.Track(SearchEvent{Type: EventSearch})
	}
	assert.Equal(t, int64(3), c.Dropped())

	c.Start(context.Background())
	c.Close()
	assert.Equal(t, 2, pub.count())
}

func TestCollectorSurvivesPublishErrors(t *testing.T) {
	pub := &memoryPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 4)
	c.Start(context.Background())
	c.Track(SearchEvent{Type: EventSearch})
	c.Close()
	assert.Zero(t, pub.count())
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	base := time.Now()
	agg.startTime = base
	agg.now = func() time.Time { return base.Add(2 * time.Minute) }

	agg.RecordSearch(SearchEvent{Type: EventSearch, Query: "Sea", Terms: []string{"sea"}, TotalHits: 3, LatencyMs: 1})
	agg.RecordSearch(SearchEvent{Type: EventSearch, Query: "seas", Terms: []string{"sea"}, TotalHits: 3, LatencyMs: 3, CacheHit: true})
	agg.RecordSearch(SearchEvent{Type: EventZeroResult, Query: "dragon", Terms: []string{"dragon"}, LatencyMs: 2})
	agg.RecordSearch(SearchEvent{Type: EventEmptyQuery, Query: "the"})
	agg.RecordIndex(indexer.IndexPublished{Generation: "gen-7", Documents: 500})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.EmptyQueryCount)
	assert.InDelta(t, 2.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 2.0, stats.P50LatencyMs)
	assert.Equal(t, 3.0, stats.P99LatencyMs)
	assert.InDelta(t, 1.5, stats.QueriesPerMinute, 1e-9)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "sea", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "dragon", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, "gen-7", stats.Generation)
	assert.Equal(t, 500, stats.IndexedDocuments)
	assert.Equal(t, int64(1), stats.GenerationsSeen)
}

func TestAggregatorBoundsLatencySamples(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.RecordSearch(SearchEvent{Type: EventSearch, Terms: []string{"x"}, TotalHits: 1, LatencyMs: 1})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalSearches)
}

func TestAggregatorRestore(t *testing.T) {
	agg := NewAggregator()
	agg.Restore(AggregatedStats{
		TotalSearches: 10,
		TopQueries:    []QueryCount{{Query: "sea", Count: 4}},
		Generation:    "gen-3",
	})
	agg.RecordSearch(SearchEvent{Type: EventSearch, Terms: []string{"sea"}, TotalHits: 1})

	stats := agg.Stats()
	assert.Equal(t, int64(11), stats.TotalSearches)
	assert.Equal(t, int64(5), stats.TopQueries[0].Count)
	assert.Equal(t, "gen-3", stats.Generation)
}

func TestMessageHandlers(t *testing.T) {
	agg := NewAggregator()
	search, _ := json.Marshal(SearchEvent{Type: EventSearch, Terms: []string{"sea"}, TotalHits: 1})
	published, _ := json.Marshal(indexer.IndexPublished{Generation: "gen-9", Documents: 12})

	require.NoError(t, HandleSearchEvent(agg)(context.Background(), nil, search))
	require.NoError(t, HandleIndexPublished(agg)(context.Background(), nil, published))
	// Undecodable messages are skipped, not retried.
	require.NoError(t, HandleSearchEvent(agg)(context.Background(), nil, []byte("{")))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, "gen-9", stats.Generation)
}

func TestStatsHandler(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Type: EventSearch, Terms: []string{"sea"}, TotalHits: 1})

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.TotalSearches)
}

func TestQueryRankingRoutes(t *testing.T) {
	agg := NewAggregator()
	for i, q := range []string{"sea", "sea", "sea", "night", "night", "forest"} {
		agg.RecordSearch(SearchEvent{Type: EventSearch, Terms: []string{q}, TotalHits: i + 1})
	}
	agg.RecordSearch(SearchEvent{Type: EventZeroResult, Terms: []string{"dragon"}})
	mux := http.NewServeMux()
	NewHandler(agg).Register(mux)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/api/v1/analytics?top=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []QueryCount{{"sea", 3}, {"night", 2}}, stats.TopQueries)

	rec = get("/api/v1/analytics/queries?kind=zero_result")
	require.Equal(t, http.StatusOK, rec.Code)
	var body queriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "zero_result", body.Kind)
	assert.Equal(t, []QueryCount{{"dragon", 1}}, body.Queries)

	rec = get("/api/v1/analytics/queries?top=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "top", body.Kind)
	assert.Equal(t, []QueryCount{{"sea", 3}}, body.Queries)

	for _, bad := range []string{"/api/v1/analytics?top=0", "/api/v1/analytics?top=x", "/api/v1/analytics/queries?kind=slow"} {
		rec = get(bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Contains(t, rec.Body.String(), `"error"`, bad)
	}
}
