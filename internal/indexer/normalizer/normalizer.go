// Package normalizer turns raw text into the canonical token sequence shared
// by index construction and query processing: case folding, symbol removal,
// stop-word filtering, part-of-speech tagging and lemmatization.
//
// Build time and query time must use a Normalizer configured with the same
// resources; any divergence silently breaks retrieval.
package normalizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Separator joins the items of a batch. It never survives symbol removal
// inside an item, so it can only appear where the batch put it.
const Separator = "ǁ"

// fixedSymbols are always removed, together with whatever else the input
// contains outside [a-z ].
const fixedSymbols = `-+*.\/']|`

// Normalizer is immutable once built and safe for concurrent use.
type Normalizer struct {
	stopWords  StopWords
	tagger     Tagger
	lemmatizer Lemmatizer
}

func New(stopWords StopWords, tagger Tagger, lemmatizer Lemmatizer) *Normalizer {
	return &Normalizer{stopWords: stopWords, tagger: tagger, lemmatizer: lemmatizer}
}

// NewFromConfig resolves the named tagger and lemmatizer and uses the
// English stop-word list.
func NewFromConfig(tagger, lemmatizer string) (*Normalizer, error) {
	t, err := NewTagger(tagger)
	if err != nil {
		return nil, err
	}
	l, err := NewLemmatizer(lemmatizer)
	if err != nil {
		return nil, err
	}
	return New(EnglishStopWords(), t, l), nil
}

// Normalize returns the lemma sequence for a single string. Empty or
// whitespace-only input yields nil.
func (n *Normalizer) Normalize(text string) []string {
	return n.NormalizeBatch([]string{text})[0]
}

// NormalizeText is Normalize joined with single spaces, the form stored on
// documents.
func (n *Normalizer) NormalizeText(text string) string {
	return strings.Join(n.Normalize(text), " ")
}

// NormalizeBatch normalizes items as one joined text: the removal pattern is
// built once for the whole batch and a single removal pass runs over it.
// Tagging and lemmatization then run per item, so the result for an item
// never depends on its neighbours or on how items were batched.
func (n *Normalizer) NormalizeBatch(items []string) [][]string {
	out := make([][]string, len(items))
	if len(items) == 0 {
		return out
	}
	folded := make([]string, len(items))
	for i, item := range items {
		folded[i] = strings.ReplaceAll(strings.ToLower(item), Separator, " ")
	}
	pattern := removalPattern(folded)
	joined := strings.Join(folded, " "+Separator+" ")
	fields := strings.Fields(pattern.ReplaceAllString(joined, " "))

	item := 0
	start := 0
	for i := 0; i <= len(fields); i++ {
		if i < len(fields) && fields[i] != Separator {
			continue
		}
		out[item] = n.lemmatize(n.dropStopWords(fields[start:i]))
		item++
		start = i + 1
	}
	return out
}

// JoinBatch renders NormalizeBatch output as space-joined strings.
func JoinBatch(batch [][]string) []string {
	out := make([]string, len(batch))
	for i, tokens := range batch {
		out[i] = strings.Join(tokens, " ")
	}
	return out
}

func (n *Normalizer) dropStopWords(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !n.stopWords.Contains(tok) {
			kept = append(kept, tok)
		}
	}
	return kept
}

func (n *Normalizer) lemmatize(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	tags := n.tagger.Tag(tokens)
	lemmas := make([]string, len(tokens))
	for i, tok := range tokens {
		pos := Noun
		if i < len(tags) {
			pos = CoarsePOS(tags[i])
		}
		lemmas[i] = n.lemmatizer.Lemma(tok, pos)
	}
	return lemmas
}

// removalPattern collects every distinct character of texts outside ASCII
// letters, space and the fixed symbols, and returns a character class
// matching those plus the fixed symbols.
func removalPattern(texts []string) *regexp.Regexp {
	seen := make(map[rune]struct{})
	for _, text := range texts {
		for _, r := range text {
			if isKept(r) || strings.ContainsRune(fixedSymbols, r) {
				continue
			}
			seen[r] = struct{}{}
		}
	}
	runes := make([]rune, 0, len(seen)+len(fixedSymbols))
	for r := range seen {
		runes = append(runes, r)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	runes = append(runes, []rune(fixedSymbols)...)

	var sb strings.Builder
	sb.WriteByte('[')
	for _, r := range runes {
		if r < utf8.RuneSelf && !isAlnum(r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte(']')
	return regexp.MustCompile(sb.String())
}

func isKept(r rune) bool {
	return r == ' ' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isAlnum(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
