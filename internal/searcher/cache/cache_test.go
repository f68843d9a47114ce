package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/resilience"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
	gets int
	ttl  time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: make(map[string][]byte)}
}

func (f *fakeClient) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (f *fakeClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	f.ttl = ttl
	return nil
}

func (f *fakeClient) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func plan(raw string, terms ...string) *parser.QueryPlan {
	return &parser.QueryPlan{RawQuery: raw, Terms: terms}
}

func TestBuildKey(t *testing.T) {
	a := BuildKey("gen-1", plan("Wandering!", "wander"))
	b := BuildKey("gen-1", plan("wander", "wander"))
	c := BuildKey("gen-2", plan("wander", "wander"))
	d := BuildKey("gen-1", plan("lost wander", "lost", "wander"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Regexp(t, `^search:gen-1:[0-9a-f]{32}$`, a)
}

func TestGetOrComputeStoresAndHits(t *testing.T) {
	client := newFakeClient()
	c := New(client, time.Minute)
	ctx := context.Background()
	p := plan("wander", "wander")

	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return &executor.SearchResult{Query: "wander", Generation: "gen-1", TotalHits: 1,
			Results: []executor.Hit{{ID: 1, Header: "Tolkien, The Fellowship", ScoreText: "1.23"}}}, nil
	}

	res, hit, err := c.GetOrCompute(ctx, "gen-1", p, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, res.TotalHits)

	res, hit, err = c.GetOrCompute(ctx, "gen-1", p, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Tolkien, The Fellowship", res.Results[0].Header)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Minute, client.ttl)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// A different generation never sees the old entry.
	_, hit, err = c.GetOrCompute(ctx, "gen-2", p, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestGetOrComputePropagatesErrors(t *testing.T) {
	c := New(newFakeClient(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "gen-1", plan("x", "x"),
		func() (*executor.SearchResult, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newFakeClient(), time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return &executor.SearchResult{TotalHits: 3}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), "gen-1", plan("sea", "sea"), compute)
			assert.NoError(t, err)
			assert.Equal(t, 3, res.TotalHits)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(10))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestRedisFailuresDegradeToMisses(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	breaker := resilience.NewBreaker("test", 2, time.Hour)
	c := New(client, time.Minute, WithBreaker(breaker))

	for i := 0; i < 5; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "gen-1", plan("sea", "sea"),
			func() (*executor.SearchResult, error) { return &executor.SearchResult{TotalHits: 2}, nil })
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 2, res.TotalHits)
	}
	assert.True(t, breaker.Open())
	// Once open, the breaker stops calling Redis.
	assert.Equal(t, 1, client.gets)
}

func TestInvalidateGeneration(t *testing.T) {
	client := newFakeClient()
	c := New(client, time.Minute)
	ctx := context.Background()
	result := &executor.SearchResult{TotalHits: 1}

	c.Set(ctx, "gen-1", plan("a", "a"), result)
	c.Set(ctx, "gen-1", plan("b", "b"), result)
	c.Set(ctx, "gen-2", plan("a", "a"), result)

	n, err := c.InvalidateGeneration(ctx, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok := c.Get(ctx, "gen-2", plan("a", "a"))
	assert.True(t, ok)

	n, err = c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, client.data)
}
