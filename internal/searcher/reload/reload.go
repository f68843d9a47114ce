// Package reload swaps freshly published index generations into a running
// search process. A generation is loaded completely before it becomes
// visible; queries already running keep the snapshot they started with.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/resilience"
)

// Invalidator drops cached results of a retired generation.
type Invalidator interface {
	InvalidateGeneration(ctx context.Context, generation string) (int64, error)
}

type Reloader struct {
	dataDir string
	holder  *store.Holder
	cache   Invalidator
	metrics *metrics.Metrics
	retry   resilience.RetryConfig
	load    func(dir string) (*store.Store, error)

	mu     sync.Mutex
	logger *slog.Logger
}

type Option func(*Reloader)

func WithCache(c Invalidator) Option {
	return func(r *Reloader) { r.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reloader) { r.metrics = m }
}

func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Reloader) { r.retry = cfg }
}

func New(dataDir string, holder *store.Holder, opts ...Option) *Reloader {
	r := &Reloader{
		dataDir: dataDir,
		holder:  holder,
		load:    store.Load,
		logger:  slog.Default().With("component", "index-reloader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadCurrent loads the generation CURRENT points at and installs it. The
// serving process calls it once before accepting traffic.
func (r *Reloader) LoadCurrent(ctx context.Context) error {
	var name string
	err := resilience.Retry(ctx, "read-current", r.retry, func() error {
		var err error
		name, err = segment.Current(r.dataDir)
		return err
	})
	if err != nil {
		r.count("failed")
		return err
	}
	return r.Reload(ctx, name)
}

// Reload installs generation name unless it is already served or older
// than the served one.
func (r *Reloader) Reload(ctx context.Context, name string) error {
	if !segment.ValidName(name) {
		r.count("failed")
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid generation name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.holder.Current(); cur != nil && !segment.Older(cur.Generation(), name) {
		r.count("skipped")
		r.logger.Info("generation not newer than served one, skipping",
			"generation", name, "served", cur.Generation())
		return nil
	}

	var next *store.Store
	err := resilience.Retry(ctx, "load-"+name, r.retry, func() error {
		s, err := r.load(filepath.Join(r.dataDir, name))
		if err != nil {
			if errors.Is(err, apperrors.ErrCorruptIndex) || errors.Is(err, apperrors.ErrZeroDocuments) {
				return resilience.Permanent(err)
			}
			return err
		}
		next = s
		return nil
	})
	if err != nil {
		r.count("failed")
		return fmt.Errorf("reloading %s: %w", name, err)
	}

	prev := r.holder.Swap(next)
	r.count("success")
	if r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(next.DocCount()))
	}
	r.logger.Info("generation installed",
		"generation", name,
		"documents", next.DocCount(),
		"avg_words_quote", next.Stats().AvgQuoteLen,
		"avg_words_title", next.Stats().AvgTitleLen,
	)

	if prev != nil && r.cache != nil {
		if _, err := r.cache.InvalidateGeneration(ctx, prev.Generation()); err != nil {
			r.logger.Warn("invalidating retired generation failed",
				"generation", prev.Generation(), "error", err)
		}
	}
	return nil
}

// HandleMessage adapts the reloader to the index-published topic. Failed
// reloads are logged by the consumer and the old generation keeps serving.
func HandleMessage(r *Reloader) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexPublished](value)
		if err != nil {
			r.logger.Error("failed to decode index event", "error", err, "key", string(key))
			return nil
		}
		return r.Reload(ctx, event.Generation)
	}
}

func (r *Reloader) count(status string) {
	if r.metrics != nil {
		r.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}
