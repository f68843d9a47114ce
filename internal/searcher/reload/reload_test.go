package reload

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu          sync.Mutex
	generations []string
}

func (r *recordingInvalidator) InvalidateGeneration(_ context.Context, generation string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, generation)
	return 1, nil
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func build(t *testing.T, dir string, raw ...corpus.RawDocument) string {
	t.Helper()
	n := normalizer.New(normalizer.EnglishStopWords(), normalizer.NounTagger{}, normalizer.StemLemmatizer{})
	pool, err := normalizer.NewPool(n, normalizer.WithWorkers(2))
	require.NoError(t, err)
	defer pool.Release()

	b := indexer.NewBuilder(dir, pool)
	docs, err := b.BuildDocuments(context.Background(), raw)
	require.NoError(t, err)
	gen, err := b.Write(context.Background(), docs)
	require.NoError(t, err)
	return gen.Name
}

func gauge(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestLoadCurrentThenReloadNewer(t *testing.T) {
	dir := t.TempDir()
	first := build(t, dir, corpus.RawDocument{Quote: "Not all who wander are lost", Author: "Tolkien", Title: "The Fellowship"})

	holder := &store.Holder{}
	inv := &recordingInvalidator{}
	m := metrics.New(prometheus.NewRegistry())
	r := New(dir, holder, WithCache(inv), WithMetrics(m), WithRetry(fastRetry))

	require.NoError(t, r.LoadCurrent(context.Background()))
	require.NotNil(t, holder.Current())
	assert.Equal(t, first, holder.Current().Generation())
	assert.Equal(t, 1.0, gauge(t, m.IndexDocuments))

	pinned := holder.Current()
	second := build(t, dir,
		corpus.RawDocument{Quote: "The sea is calm tonight", Author: "Arnold", Title: "Dover Beach"},
		corpus.RawDocument{Quote: "A ship on the sea", Author: "Anon", Title: "Night Sea"},
	)
	require.NoError(t, r.Reload(context.Background(), second))

	assert.Equal(t, second, holder.Current().Generation())
	assert.Equal(t, 2.0, gauge(t, m.IndexDocuments))
	assert.Equal(t, []string{first}, inv.generations)
	assert.Equal(t, 2.0, counter(t, m.IndexReloadsTotal.WithLabelValues("success")))
	// The previously pinned snapshot is untouched.
	assert.Equal(t, first, pinned.Generation())
	assert.Equal(t, 1, pinned.DocCount())

	// Same and older generations are ignored.
	require.NoError(t, r.Reload(context.Background(), second))
	require.NoError(t, r.Reload(context.Background(), first))
	assert.Equal(t, second, holder.Current().Generation())
	assert.Equal(t, 2.0, counter(t, m.IndexReloadsTotal.WithLabelValues("skipped")))
}

func TestReloadRejectsInvalidNames(t *testing.T) {
	r := New(t.TempDir(), &store.Holder{})
	for _, name := range []string{"", "../etc", "gen-", "gen-12a", "CURRENT"} {
		err := r.Reload(context.Background(), name)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, name)
	}
}

func TestReloadCorruptGenerationKeepsServing(t *testing.T) {
	dir := t.TempDir()
	first := build(t, dir, corpus.RawDocument{Quote: "Not all who wander are lost", Author: "Tolkien", Title: "The Fellowship"})
	holder := &store.Holder{}
	r := New(dir, holder, WithRetry(fastRetry))
	require.NoError(t, r.LoadCurrent(context.Background()))

	second := build(t, dir, corpus.RawDocument{Quote: "The sea is calm", Author: "Arnold", Title: "Dover Beach"})
	path := filepath.Join(dir, second, segment.DocumentsFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0o644))

	calls := 0
	r.load = func(dir string) (*store.Store, error) {
		calls++
		return store.Load(dir)
	}
	err = r.Reload(context.Background(), second)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptIndex)
	assert.Equal(t, 1, calls, "corruption is not retried")
	assert.Equal(t, first, holder.Current().Generation())
}

func TestReloadRetriesTransientFailures(t *testing.T) {
	dir := t.TempDir()
	name := build(t, dir, corpus.RawDocument{Quote: "The sea is calm", Author: "Arnold", Title: "Dover Beach"})
	holder := &store.Holder{}
	r := New(dir, holder, WithRetry(fastRetry))

	calls := 0
	r.load = func(dir string) (*store.Store, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("too many open files")
		}
		return store.Load(dir)
	}
	require.NoError(t, r.Reload(context.Background(), name))
	assert.Equal(t, 2, calls)
	assert.Equal(t, name, holder.Current().Generation())
}

func TestLoadCurrentWithoutIndex(t *testing.T) {
	r := New(t.TempDir(), &store.Holder{}, WithRetry(fastRetry))
	assert.Error(t, r.LoadCurrent(context.Background()))
}

func TestHandleMessage(t *testing.T) {
	dir := t.TempDir()
	name := build(t, dir, corpus.RawDocument{Quote: "The sea is calm", Author: "Arnold", Title: "Dover Beach"})
	holder := &store.Holder{}
	handle := HandleMessage(New(dir, holder, WithRetry(fastRetry)))

	require.NoError(t, handle(context.Background(), nil, []byte("not json")))
	assert.Nil(t, holder.Current())

	value, err := json.Marshal(indexer.IndexPublished{Generation: name, Documents: 1})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte(name), value))
	assert.Equal(t, name, holder.Current().Generation())
}
