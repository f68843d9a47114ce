// Command indexer builds, verifies and queries index generations offline.
//
// Usage:
//
//	indexer build  --driver csv --corpus data/quotes.csv --data-dir data/index
//	indexer verify --data-dir data/index
//	indexer query  --data-dir data/index "not all who wander"
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

type cliState struct {
	cfg *config.Config
}

func newApp() *cli.App {
	st := &cliState{}
	dataDirFlag := &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Usage:   "Index data directory (overrides index.dataDir)",
	}
	generationFlag := &cli.StringFlag{
		Name:    "generation",
		Aliases: []string{"g"},
		Usage:   "Generation to open instead of the one CURRENT points at",
	}
	taggerFlag := &cli.StringFlag{
		Name:  "tagger",
		Usage: "POS tagger: perceptron or none (overrides normalizer.tagger)",
	}
	lemmatizerFlag := &cli.StringFlag{
		Name:  "lemmatizer",
		Usage: "Lemmatizer: dictionary or stem (overrides normalizer.lemmatizer)",
	}

	return &cli.App{
		Name:  "indexer",
		Usage: "Build and inspect quotex index generations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
		},
		Before: st.setup,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Normalize a corpus and publish a new index generation",
				Action: st.buildCommand,
				Flags: []cli.Flag{
					dataDirFlag,
					taggerFlag,
					lemmatizerFlag,
					&cli.StringFlag{
						Name:  "driver",
						Usage: "Corpus driver: csv, postgres or sqlite",
					},
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Corpus file path for the csv and sqlite drivers",
					},
					&cli.StringFlag{
						Name:  "query",
						Usage: "SELECT returning quote, author, title for the sql drivers",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Normalization workers (0 means one per CPU)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Items normalized per batch",
					},
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Generations kept on disk after publishing",
					},
					&cli.BoolFlag{
						Name:  "publish",
						Usage: "Announce the generation on the index-published Kafka topic",
					},
				},
			},
			{
				Name:   "verify",
				Usage:  "Check a generation's checksums and posting/document consistency",
				Action: st.verifyCommand,
				Flags: []cli.Flag{dataDirFlag, generationFlag,
					&cli.IntFlag{
						Name:  "terms",
						Usage: "Also list up to this many vocabulary terms per field",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Search a generation on disk and print the ranked results",
				ArgsUsage: "<query text>",
				Action:    st.queryCommand,
				Flags:     []cli.Flag{dataDirFlag, generationFlag, taggerFlag, lemmatizerFlag},
			},
		},
	}
}

// setup loads the config and sends logs to stderr so stdout carries only
// command output.
func (st *cliState) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")
	st.cfg = cfg
	return nil
}

func (st *cliState) applyCommon(c *cli.Context) {
	if v := c.String("data-dir"); v != "" {
		st.cfg.Index.DataDir = v
	}
	if v := c.String("tagger"); v != "" {
		st.cfg.Normalizer.Tagger = v
	}
	if v := c.String("lemmatizer"); v != "" {
		st.cfg.Normalizer.Lemmatizer = v
	}
}

func (st *cliState) buildCommand(c *cli.Context) error {
	st.applyCommon(c)
	cfg := st.cfg
	if v := c.String("driver"); v != "" {
		cfg.Corpus.Driver = v
	}
	if v := c.String("corpus"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := c.String("query"); v != "" {
		cfg.Corpus.Query = v
	}
	if c.IsSet("workers") {
		cfg.Normalizer.Workers = c.Int("workers")
	}
	if c.IsSet("batch-size") {
		cfg.Normalizer.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("keep") {
		cfg.Index.KeepGenerations = c.Int("keep")
	}
	workers := cfg.Normalizer.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	n, err := normalizer.NewFromConfig(cfg.Normalizer.Tagger, cfg.Normalizer.Lemmatizer)
	if err != nil {
		return fmt.Errorf("loading linguistic resources: %w", err)
	}
	pool, err := normalizer.NewPool(n,
		normalizer.WithWorkers(workers),
		normalizer.WithBatchSize(cfg.Normalizer.BatchSize),
	)
	if err != nil {
		return err
	}
	defer pool.Release()

	src, err := corpus.Open(cfg.Corpus, cfg.Postgres)
	if err != nil {
		return err
	}
	defer src.Close()

	reg := prometheus.NewRegistry()
	opts := []indexer.BuilderOption{
		indexer.WithKeepGenerations(cfg.Index.KeepGenerations),
		indexer.WithMetrics(metrics.New(reg)),
	}
	if c.Bool("publish") {
		if !cfg.Kafka.Enabled() {
			return errors.New("--publish needs kafka brokers (kafka.brokers or QX_KAFKA_BROKERS)")
		}
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexPublished)
		defer producer.Close()
		opts = append(opts, indexer.WithPublisher(producer))
	}

	gen, err := indexer.NewBuilder(cfg.Index.DataDir, pool, opts...).Build(c.Context, src)
	if err != nil {
		return err
	}
	logStageTimings(reg)
	fmt.Fprintf(c.App.Writer, "%s\t%d documents\t%d quote terms\t%d title terms\n",
		gen.Name, gen.Documents, gen.Terms[index.FieldQuote], gen.Terms[index.FieldTitle])
	return nil
}

// logStageTimings reports the build stage histogram, since nothing scrapes a
// one-shot process.
func logStageTimings(g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		if mf.GetName() != "quotex_build_stage_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			stage := ""
			for _, l := range m.GetLabel() {
				if l.GetName() == "stage" {
					stage = l.GetValue()
				}
			}
			slog.Info("build stage", "stage", stage, "seconds", m.GetHistogram().GetSampleSum())
		}
	}
}

func (st *cliState) verifyCommand(c *cli.Context) error {
	st.applyCommon(c)
	dir, err := st.generationDir(c)
	if err != nil {
		return err
	}
	snap, err := segment.ReadGeneration(dir)
	if err != nil {
		return err
	}
	for _, f := range index.Fields {
		if err := index.CheckConsistency(snap.Documents, snap.Fields[f]); err != nil {
			return fmt.Errorf("%s: %w", snap.Generation, err)
		}
	}
	s, err := store.New(snap.Generation, snap.Documents, snap.Fields)
	if err != nil {
		return err
	}
	stats := s.Stats()
	fmt.Fprintf(c.App.Writer, "%s ok\t%d documents\tavg quote %.2f\tavg title %.2f\t%d quote terms\t%d title terms\n",
		s.Generation(), stats.Documents, stats.AvgQuoteLen, stats.AvgTitleLen, stats.QuoteTerms, stats.TitleTerms)
	if limit := c.Int("terms"); limit > 0 {
		for _, f := range index.Fields {
			terms := s.Field(f).Terms()
			if len(terms) > limit {
				terms = terms[:limit]
			}
			fmt.Fprintf(c.App.Writer, "%s terms: %s\n", f, strings.Join(terms, " "))
		}
	}
	return nil
}

func (st *cliState) queryCommand(c *cli.Context) error {
	st.applyCommon(c)
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query text is required")
	}
	dir, err := st.generationDir(c)
	if err != nil {
		return err
	}
	s, err := store.Load(dir)
	if err != nil {
		return err
	}
	n, err := normalizer.NewFromConfig(st.cfg.Normalizer.Tagger, st.cfg.Normalizer.Lemmatizer)
	if err != nil {
		return fmt.Errorf("loading linguistic resources: %w", err)
	}
	p := parser.New(n)
	result := executor.NewEngine(s, p).Execute(p.Parse(query))

	w := c.App.Writer
	fmt.Fprintf(w, "%d matches in %s\n", result.TotalHits, result.Generation)
	for _, hit := range result.Results {
		fmt.Fprintf(w, "%s\t%s\n\t%s\n", hit.ScoreText, hit.Header, hit.Body)
	}
	return nil
}

func (st *cliState) generationDir(c *cli.Context) (string, error) {
	name := c.String("generation")
	if name == "" {
		var err error
		if name, err = segment.Current(st.cfg.Index.DataDir); err != nil {
			return "", err
		}
	}
	if !segment.ValidName(name) {
		return "", fmt.Errorf("invalid generation name %q", name)
	}
	return filepath.Join(st.cfg.Index.DataDir, name), nil
}
