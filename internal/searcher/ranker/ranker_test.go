package ranker

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, docs []index.Document) *store.Store {
	t.Helper()
	fields := make(map[index.Field]*index.FieldIndex)
	for _, f := range index.Fields {
		m := index.NewMemoryIndex(f)
		for i := range docs {
			m.AddDocument(&docs[i])
		}
		fields[f] = m.Freeze()
	}
	s, err := store.New("gen-1", docs, fields)
	require.NoError(t, err)
	return s
}

func TestTermScoreFormula(t *testing.T) {
	// tf=2, len=4, avg=2, N=10, df=1
	want := (2.0 * 6.0 / (5.0*(1-0.7+0.7*2.0) + 2.0)) * math.Log(10.0/2.0)
	assert.InDelta(t, want, TermScore(2, 4, 2, 10, 1), 1e-12)

	assert.Zero(t, TermScore(0, 4, 2, 10, 1))
	// Empty field across the corpus: ratio 0 rather than a division by zero.
	want = (1.0 * 6.0 / (5.0*(1-0.7) + 1.0)) * math.Log(10.0/2.0)
	assert.InDelta(t, want, TermScore(1, 0, 0, 10, 1), 1e-12)
}

func TestTermScoreMonotonicInTF(t *testing.T) {
	for _, df := range []int{0, 1, 3} {
		prev := TermScore(0, 20, 7.5, 10, df)
		for tf := 1; tf <= 20; tf++ {
			cur := TermScore(tf, 20, 7.5, 10, df)
			assert.GreaterOrEqual(t, cur, prev, "tf=%d df=%d", tf, df)
			prev = cur
		}
	}
}

func TestScoreMixesFields(t *testing.T) {
	docs := []index.Document{
		{ID: 0, QuoteNormalized: "sea ship", TitleNormalized: "voyage"},
		{ID: 1, QuoteNormalized: "desert sand", TitleNormalized: "sea"},
		{ID: 2, QuoteNormalized: "mountain", TitleNormalized: "peak"},
		{ID: 3, QuoteNormalized: "forest", TitleNormalized: "tree"},
	}
	s := newStore(t, docs)
	// N=4, quote avg = 6/4, title avg = 1.
	quoteOnly := QuoteWeight * TermScore(1, 2, 1.5, 4, 1)
	titleOnly := TitleWeight * TermScore(1, 1, 1.0, 4, 1)

	assert.InDelta(t, quoteOnly, Score(s, []string{"sea"}, 0), 1e-12)
	assert.InDelta(t, titleOnly, Score(s, []string{"sea"}, 1), 1e-12)
	assert.Greater(t, Score(s, []string{"sea"}, 1), Score(s, []string{"sea"}, 0))
	assert.InDelta(t, 2*quoteOnly, Score(s, []string{"sea", "sea"}, 0), 1e-12)
	assert.Zero(t, Score(s, []string{"sea"}, 2))
	assert.Zero(t, Score(s, nil, 0))
}

func TestRankIsStableAndTruncates(t *testing.T) {
	docs := []ScoredDoc{{0, 1}, {1, 3}, {2, 1}, {3, 2}, {4, 3}}
	ranked := Rank(docs, 4)
	assert.Equal(t, []ScoredDoc{{1, 3}, {4, 3}, {3, 2}, {0, 1}}, ranked)
	assert.Len(t, Rank([]ScoredDoc{{0, 1}}, 30), 1)
	assert.Empty(t, Rank(nil, 30))
}
