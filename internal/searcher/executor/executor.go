// Package executor is the retrieval engine: conjunctive candidate matching
// over the per-field inverted indices followed by field-weighted BM25
// ranking, evaluated against whichever generation is currently served.
package executor

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
)

// Hit is one rendered search result.
type Hit struct {
	ID        uint32  `json:"id"`
	Header    string  `json:"header"`
	Body      string  `json:"body"`
	Score     float64 `json:"score"`
	ScoreText string  `json:"scoreText"`
}

type SearchResult struct {
	Query      string `json:"query"`
	Generation string `json:"generation"`
	// TotalHits counts every matching document; Candidates is how many of
	// them were scored.
	TotalHits  int    `json:"total_hits"`
	Candidates int    `json:"candidates"`
	Results    []Hit  `json:"results"`
	Took       string `json:"took,omitempty"`
}

type Executor struct {
	holder  *store.Holder
	parser  *parser.Parser
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an Executor. m may be nil.
func New(holder *store.Holder, p *parser.Parser, m *metrics.Metrics) *Executor {
	return &Executor{
		holder:  holder,
		parser:  p,
		metrics: m,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Parse(query string) *parser.QueryPlan {
	return e.parser.Parse(query)
}

// Snapshot pins the currently served generation. Everything evaluated
// through the returned Engine sees that generation even if a reload swaps
// in another one meanwhile.
func (e *Executor) Snapshot() (*Engine, error) {
	s, err := e.holder.Get()
	if err != nil {
		return nil, err
	}
	return NewEngine(s, e.parser), nil
}

// Execute runs plan against the current generation.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan) (*SearchResult, error) {
	engine, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return e.ExecuteOn(ctx, engine, plan), nil
}

// ExecuteOn runs plan against a pinned Engine.
func (e *Executor) ExecuteOn(ctx context.Context, engine *Engine, plan *parser.QueryPlan) *SearchResult {
	result := engine.Execute(plan)
	if e.metrics != nil && !plan.Empty() {
		e.metrics.SearchCandidates.Observe(float64(result.Candidates))
		e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
	e.logger.DebugContext(ctx, "query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"candidates", result.Candidates,
		"results", len(result.Results),
	)
	return result
}
