// Package ranker implements the field-weighted BM25 used to order
// candidates: each keyword is scored separately against the quote and the
// title with the field's own length statistics and document frequencies,
// and the two field sums are mixed with fixed weights.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
)

const (
	k = 5.0
	b = 0.7

	QuoteWeight = 0.4
	TitleWeight = 0.6
)

// FieldWeight is the share field f contributes to a document's score.
func FieldWeight(f index.Field) float64 {
	if f == index.FieldTitle {
		return TitleWeight
	}
	return QuoteWeight
}

// TermScore is the BM25 contribution of one keyword in one field:
//
//	tf·(k+1) / (k·(1 − b + b·fieldLen/avgLen) + tf) · ln(N / (1 + df))
//
// A zero avgLen, which happens only when the field is empty across the whole
// corpus, gives a length ratio of 0.
func TermScore(tf, fieldLen int, avgLen float64, docCount, df int) float64 {
	ratio := 0.0
	if avgLen > 0 {
		ratio = float64(fieldLen) / avgLen
	}
	tfNorm := float64(tf) * (k + 1) / (k*(1-b+b*ratio) + float64(tf))
	return tfNorm * computeIDF(docCount, df)
}

func computeIDF(docCount, df int) float64 {
	return math.Log(float64(docCount) / float64(1+df))
}

// Score sums TermScore over terms for both fields of document id and mixes
// the field sums. Repeated keywords count once per occurrence.
func Score(s *store.Store, terms []string, id uint32) float64 {
	stats := s.Stats()
	total := 0.0
	for _, f := range index.Fields {
		tokens := s.Tokens(id, f)
		fi := s.Field(f)
		avg := stats.AvgLen(f)
		sum := 0.0
		for _, term := range terms {
			sum += TermScore(countOf(tokens, term), len(tokens), avg, stats.Documents, fi.DocFreq(term))
		}
		total += FieldWeight(f) * sum
	}
	return total
}

func countOf(tokens []string, term string) int {
	n := 0
	for _, t := range tokens {
		if t == term {
			n++
		}
	}
	return n
}

type ScoredDoc struct {
	ID    uint32
	Score float64
}

// Rank orders docs by descending score, keeping candidate order among equal
// scores, and truncates to limit when limit > 0.
func Rank(docs []ScoredDoc, limit int) []ScoredDoc {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}
