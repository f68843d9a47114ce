// Package indexer builds index generations offline: it reads the raw corpus,
// normalizes the indexed fields in parallel, inverts them and persists the
// result as a new generation.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// IndexPublished announces a new current generation to serving processes.
type IndexPublished struct {
	Generation string    `json:"generation"`
	Documents  int       `json:"documents"`
	QuoteTerms int       `json:"quote_terms"`
	TitleTerms int       `json:"title_terms"`
	CreatedAt  time.Time `json:"created_at"`
}

type Builder struct {
	dataDir   string
	pool      *normalizer.Pool
	writer    *segment.Writer
	keep      int
	publisher kafka.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type BuilderOption func(*Builder)

// WithPublisher announces every written generation on p.
func WithPublisher(p kafka.Publisher) BuilderOption {
	return func(b *Builder) { b.publisher = p }
}

func WithMetrics(m *metrics.Metrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// WithKeepGenerations bounds how many generations stay on disk. Zero keeps
// all of them.
func WithKeepGenerations(n int) BuilderOption {
	return func(b *Builder) { b.keep = n }
}

func NewBuilder(dataDir string, pool *normalizer.Pool, opts ...BuilderOption) *Builder {
	b := &Builder{
		dataDir: dataDir,
		pool:    pool,
		writer:  segment.NewWriter(dataDir),
		logger:  slog.Default().With("component", "builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads src and publishes a new generation under the data directory.
func (b *Builder) Build(ctx context.Context, src corpus.Source) (*segment.Generation, error) {
	start := time.Now()
	raw, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	b.observe("read", start)
	b.logger.Info("corpus read", "documents", len(raw), "duration", time.Since(start))

	docs, err := b.BuildDocuments(ctx, raw)
	if err != nil {
		return nil, err
	}
	return b.Write(ctx, docs)
}

// BuildDocuments normalizes the quote and title columns concurrently and
// assigns ids in corpus order.
func (b *Builder) BuildDocuments(ctx context.Context, raw []corpus.RawDocument) ([]index.Document, error) {
	if len(raw) == 0 {
		return nil, apperrors.ErrZeroDocuments
	}
	start := time.Now()
	quotes := make([]string, len(raw))
	titles := make([]string, len(raw))
	for i, r := range raw {
		quotes[i] = r.Quote
		titles[i] = r.Title
	}

	var quotesNorm, titlesNorm []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quotesNorm, err = b.pool.Normalize(gctx, quotes)
		return err
	})
	g.Go(func() error {
		var err error
		titlesNorm, err = b.pool.Normalize(gctx, titles)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("normalizing corpus: %w", err)
	}
	b.observe("normalize", start)
	b.logger.Info("corpus normalized", "documents", len(raw), "duration", time.Since(start))

	docs := make([]index.Document, len(raw))
	for i, r := range raw {
		docs[i] = index.Document{
			ID:              uint32(i),
			Quote:           r.Quote,
			Author:          r.Author,
			Title:           r.Title,
			QuoteNormalized: quotesNorm[i],
			TitleNormalized: titlesNorm[i],
		}
	}
	return docs, nil
}

// Write inverts docs, persists the generation, prunes old generations and
// announces the new one.
func (b *Builder) Write(ctx context.Context, docs []index.Document) (*segment.Generation, error) {
	start := time.Now()
	fields := make(map[index.Field][]index.TermEntry, len(index.Fields))
	for _, f := range index.Fields {
		m := index.NewMemoryIndex(f)
		for i := range docs {
			m.AddDocument(&docs[i])
		}
		if err := index.CheckConsistency(docs, m.Freeze()); err != nil {
			return nil, fmt.Errorf("inverting %s: %w", f, err)
		}
		fields[f] = m.Snapshot()
		b.logger.Debug("field inverted", "field", f.String(), "terms", m.TermCount(), "documents", m.DocCount())
	}
	b.observe("invert", start)

	start = time.Now()
	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	gen, err := b.writer.Write(docs, fields)
	if err != nil {
		return nil, fmt.Errorf("writing generation: %w", err)
	}
	b.observe("write", start)
	b.logger.Info("generation written",
		"generation", gen.Name,
		"documents", gen.Documents,
		"quote_terms", gen.Terms[index.FieldQuote],
		"title_terms", gen.Terms[index.FieldTitle],
	)

	if b.keep > 0 {
		removed, err := segment.Prune(b.dataDir, b.keep)
		if err != nil {
			b.logger.Warn("pruning old generations failed", "error", err)
		} else if len(removed) > 0 {
			b.logger.Info("old generations removed", "generations", removed)
		}
	}

	if b.publisher != nil {
		event := IndexPublished{
			Generation: gen.Name,
			Documents:  gen.Documents,
			QuoteTerms: gen.Terms[index.FieldQuote],
			TitleTerms: gen.Terms[index.FieldTitle],
			CreatedAt:  time.Now().UTC(),
		}
		// CURRENT already points at the new generation, so a lost
		// announcement only delays replicas until their next restart.
		if err := b.publisher.Publish(ctx, kafka.Event{Key: gen.Name, Value: event}); err != nil {
			b.logger.Error("announcing generation failed", "generation", gen.Name, "error", err)
		}
	}
	return gen, nil
}

func (b *Builder) observe(stage string, start time.Time) {
	if b.metrics != nil {
		b.metrics.BuildDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
