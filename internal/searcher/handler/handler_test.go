package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRedis struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryRedis) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryRedis) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	holder  *store.Holder
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	n := normalizer.New(normalizer.EnglishStopWords(), normalizer.NounTagger{}, normalizer.StemLemmatizer{})
	docs := []index.Document{
		{ID: 0, Quote: "To be or not to be", Author: "Shakespeare", Title: "Hamlet"},
		{ID: 1, Quote: "Not all who wander are lost", Author: "Tolkien", Title: "The Fellowship"},
	}
	fields := make(map[index.Field]*index.FieldIndex)
	for i := range docs {
		docs[i].QuoteNormalized = n.NormalizeText(docs[i].Quote)
		docs[i].TitleNormalized = n.NormalizeText(docs[i].Title)
	}
	for _, f := range index.Fields {
		m := index.NewMemoryIndex(f)
		for i := range docs {
			m.AddDocument(&docs[i])
		}
		fields[f] = m.Freeze()
	}
	s, err := store.New("gen-1", docs, fields)
	require.NoError(t, err)

	holder := &store.Holder{}
	holder.Swap(s)
	m := metrics.New(prometheus.NewRegistry())
	exec := executor.New(holder, parser.New(n), m)

	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memoryRedis{data: make(map[string][]byte)}, time.Minute, cache.WithMetrics(m))
	}
	mux := http.NewServeMux()
	New(exec, qc, nil, m).Register(mux)
	return &fixture{holder: holder, metrics: m, mux: mux}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) executor.SearchResult {
	t.Helper()
	var result executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestSearchReturnsRenderedHits(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/search?query=wander")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	result := decodeResult(t, rec)
	assert.Equal(t, "wander", result.Query)
	assert.Equal(t, 1, result.TotalHits)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Tolkien, The Fellowship", result.Results[0].Header)
	assert.Equal(t, "Not all who wander are lost", result.Results[0].Body)
	assert.Regexp(t, `^\d+\.\d{2}$`, result.Results[0].ScoreText)
	assert.Regexp(t, `^\d+\.\d{2}$`, result.Took)
	assert.Equal(t, 1.0, counter(t, f.metrics.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestSearchEmptyQueries(t *testing.T) {
	f := newFixture(t, false)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?query=",
		"/api/v1/search?query=%20%20",
		"/api/v1/search?query=to+be+or+not",
	} {
		rec := f.do(t, http.MethodGet, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		result := decodeResult(t, rec)
		assert.NotNil(t, result.Results, target)
		assert.Empty(t, result.Results, target)
	}
	assert.Equal(t, 4.0, counter(t, f.metrics.SearchQueriesTotal.WithLabelValues("empty_query")))
}

func TestSearchZeroResults(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/search?query=dragon")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeResult(t, rec).Results)
	assert.Equal(t, 1.0, counter(t, f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchBeforeLoad(t *testing.T) {
	f := newFixture(t, false)
	f.holder.Swap(nil)
	rec := f.do(t, http.MethodGet, "/api/v1/search?query=wander")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "index not loaded")

	rec = f.do(t, http.MethodGet, "/api/v1/index")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)
	first := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?query=wander"))
	second := decodeResult(t, f.do(t, http.MethodGet, "/api/v1/search?query=Wandering"))

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, "Wandering", second.Query)
	assert.Equal(t, 1.0, counter(t, f.metrics.CacheHitsTotal))

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hit_rate":"50.0%"`)

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexInfo(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/index")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Generation string      `json:"generation"`
		Stats      store.Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "gen-1", body.Generation)
	assert.Equal(t, 2, body.Stats.Documents)
}
