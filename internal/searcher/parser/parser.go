// Package parser turns a raw user query into the keyword list the retrieval
// engine matches. Queries have no operators: every keyword must match.
package parser

import "strings"

// Normalizer is the query-side view of the text normalizer; it must be the
// same pipeline the index was built with.
type Normalizer interface {
	Normalize(text string) []string
}

type QueryPlan struct {
	RawQuery string
	Terms    []string
}

// Empty reports whether the query normalized to no keywords.
func (p *QueryPlan) Empty() bool { return len(p.Terms) == 0 }

// Key is a canonical form of the keyword list. Queries that normalize to the
// same keywords in the same order share a key.
func (p *QueryPlan) Key() string { return strings.Join(p.Terms, " ") }

type Parser struct {
	normalizer Normalizer
}

func New(n Normalizer) *Parser {
	return &Parser{normalizer: n}
}

func (p *Parser) Parse(query string) *QueryPlan {
	plan := &QueryPlan{RawQuery: query}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = p.normalizer.Normalize(query)
	return plan
}
