package executor

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/RoaringBitmap/roaring"
)

const (
	// MaxCandidates caps the conjunctive match set handed to scoring.
	MaxCandidates = 300
	// MaxResults caps the ranked output.
	MaxResults = 30
)

// Engine answers queries against one Store. It holds no mutable state, so a
// single Engine may serve any number of concurrent queries.
type Engine struct {
	store  *store.Store
	parser *parser.Parser
}

func NewEngine(s *store.Store, p *parser.Parser) *Engine {
	return &Engine{store: s, parser: p}
}

func (e *Engine) Store() *store.Store { return e.store }

func (e *Engine) Generation() string { return e.store.Generation() }

// ScoredDocument is a ranked hit.
type ScoredDocument struct {
	Doc   *index.Document
	Score float64
}

// Retrieve returns the candidate documents for rawQuery: those whose quote
// contains every keyword, or whose title does. At most MaxCandidates are
// returned, lowest ids first.
func (e *Engine) Retrieve(rawQuery string) []*index.Document {
	ids, _ := e.candidates(e.parser.Parse(rawQuery).Terms)
	docs := make([]*index.Document, len(ids))
	for i, id := range ids {
		docs[i] = e.store.Document(id)
	}
	return docs
}

// Score is the field-weighted BM25 score of doc for rawQuery.
func (e *Engine) Score(rawQuery string, doc *index.Document) float64 {
	return ranker.Score(e.store, e.parser.Parse(rawQuery).Terms, doc.ID)
}

// Search retrieves, scores and ranks, returning at most MaxResults hits in
// descending score order.
func (e *Engine) Search(rawQuery string) []ScoredDocument {
	ranked, _, _ := e.search(e.parser.Parse(rawQuery).Terms)
	out := make([]ScoredDocument, len(ranked))
	for i, r := range ranked {
		out[i] = ScoredDocument{Doc: e.store.Document(r.ID), Score: r.Score}
	}
	return out
}

// Execute runs an already parsed plan and renders the presentation result.
func (e *Engine) Execute(plan *parser.QueryPlan) *SearchResult {
	result := &SearchResult{
		Query:      plan.RawQuery,
		Generation: e.store.Generation(),
		Results:    []Hit{},
	}
	if plan.Empty() {
		return result
	}
	ranked, candidates, total := e.search(plan.Terms)
	result.TotalHits = total
	result.Candidates = candidates
	for _, r := range ranked {
		header, body := e.store.Document(r.ID).Format()
		result.Results = append(result.Results, Hit{
			ID:        r.ID,
			Header:    header,
			Body:      body,
			Score:     r.Score,
			ScoreText: fmt.Sprintf("%.2f", r.Score),
		})
	}
	return result
}

func (e *Engine) search(terms []string) (ranked []ranker.ScoredDoc, candidates, total int) {
	ids, total := e.candidates(terms)
	scored := make([]ranker.ScoredDoc, len(ids))
	for i, id := range ids {
		scored[i] = ranker.ScoredDoc{ID: id, Score: ranker.Score(e.store, terms, id)}
	}
	return ranker.Rank(scored, MaxResults), len(ids), total
}

// candidates ANDs the keywords' postings within each field, ORs the field
// results and keeps the first MaxCandidates ids in ascending order. total is
// the size of the match set before the cap.
func (e *Engine) candidates(terms []string) ([]uint32, int) {
	if len(terms) == 0 {
		return nil, 0
	}
	perField := make([]*roaring.Bitmap, 0, len(index.Fields))
	for _, f := range index.Fields {
		fi := e.store.Field(f)
		postings := make([]*roaring.Bitmap, len(terms))
		for i, t := range terms {
			postings[i] = fi.Postings(t)
		}
		perField = append(perField, roaring.FastAnd(postings...))
	}
	matched := roaring.FastOr(perField...)
	total := int(matched.GetCardinality())

	ids := make([]uint32, 0, min(total, MaxCandidates))
	it := matched.Iterator()
	for it.HasNext() && len(ids) < MaxCandidates {
		ids = append(ids, it.Next())
	}
	return ids, total
}
