package normalizer

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/kljensen/snowball/english"
)

// Lemmatizer reduces a word to its dictionary form for a part of speech.
// Implementations must be safe for concurrent use.
type Lemmatizer interface {
	Lemma(word string, pos POS) string
}

// Dictionary is a part-of-speech agnostic form-to-lemma lookup.
// *golem.Lemmatizer satisfies it.
type Dictionary interface {
	InDict(word string) bool
	Lemmas(word string) []string
	Lemma(word string) string
}

type detachment struct {
	suffix      string
	replacement string
}

// Inflectional suffix rules per part of speech, tried in order.
var detachments = map[POS][]detachment{
	Noun: {
		{"s", ""}, {"ses", "s"}, {"xes", "x"}, {"zes", "z"},
		{"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"},
	},
	Verb: {
		{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""},
		{"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""},
	},
	Adjective: {
		{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"},
	},
}

// Words ending in an inflection-like "s" that are their own lemma. The
// dictionary has no part of speech to tell them apart from plurals.
var invariantWords = map[string]struct{}{
	"news": {}, "series": {}, "species": {}, "means": {}, "thanks": {},
	"physics": {}, "mathematics": {}, "politics": {}, "economics": {},
	"ethics": {}, "athletics": {}, "gymnastics": {}, "linguistics": {},
	"measles": {}, "mumps": {},
}

// DictionaryLemmatizer applies the suffix rules for the word's part of
// speech. A candidate the dictionary lists as a lemma of the word wins
// outright. Otherwise a verb prefers any base form a rule reaches, and other
// parts of speech keep the word when it is a base form itself. Irregular
// forms no rule reaches fall back to the dictionary's own lemma.
type DictionaryLemmatizer struct {
	// golem sorts its lemma lists in place on lookup.
	mu   sync.Mutex
	dict Dictionary
}

func NewDictionaryLemmatizer(dict Dictionary) *DictionaryLemmatizer {
	return &DictionaryLemmatizer{dict: dict}
}

var (
	englishOnce    sync.Once
	englishLemmas  *DictionaryLemmatizer
	englishDictErr error
)

// DefaultDictionaryLemmatizer returns the process-wide lemmatizer over
// golem's English dictionary. The dictionary is decoded once per process.
func DefaultDictionaryLemmatizer() (*DictionaryLemmatizer, error) {
	englishOnce.Do(func() {
		dict, err := golem.New(en.New())
		if err != nil {
			englishDictErr = fmt.Errorf("loading english lemma dictionary: %w", err)
			return
		}
		englishLemmas = NewDictionaryLemmatizer(dict)
	})
	return englishLemmas, englishDictErr
}

func (l *DictionaryLemmatizer) Lemma(word string, pos POS) string {
	if word == "" {
		return word
	}
	if _, ok := invariantWords[word]; ok {
		return word
	}
	known := l.lemmas(word)
	confirmed, loose := "", ""
	for _, d := range detachments[pos] {
		if !strings.HasSuffix(word, d.suffix) {
			continue
		}
		stem := word[:len(word)-len(d.suffix)]
		for i, candidate := range ruleCandidates(stem, d) {
			if candidate == "" || candidate == word || !l.isBase(candidate) {
				continue
			}
			switch {
			case slices.Contains(known, candidate):
				confirmed = shorter(confirmed, candidate)
			case i == 0 && len(stem) >= 3:
				// Unconfirmed stems of two letters are too often a different
				// word ("feed" is not "fe" + "ed").
				loose = shorter(loose, candidate)
			}
		}
	}
	switch {
	case confirmed != "":
		return confirmed
	case pos == Verb && loose != "":
		return loose
	case l.isBase(word):
		return word
	case loose != "":
		return loose
	case pos == Adverb:
		return word
	}
	l.mu.Lock()
	lemma := l.dict.Lemma(word)
	l.mu.Unlock()
	if lemma != "" {
		return lemma
	}
	return word
}

func (l *DictionaryLemmatizer) lemmas(word string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.dict.Lemmas(word))
}

// ruleCandidates applies one detachment to stem. Stripping "ed", "ing",
// "er" or "est" also tries undoubling a final consonant (running, bigger),
// which only counts when the dictionary confirms it.
func ruleCandidates(stem string, d detachment) []string {
	out := []string{stem + d.replacement}
	if d.replacement != "" {
		return out
	}
	switch d.suffix {
	case "ed", "ing", "er", "est":
	default:
		return out
	}
	n := len(stem)
	if n >= 2 && stem[n-1] == stem[n-2] && !strings.ContainsRune("aeiou", rune(stem[n-1])) {
		out = append(out, stem[:n-1])
	}
	return out
}

func shorter(best, candidate string) string {
	if best == "" || len(candidate) < len(best) {
		return candidate
	}
	return best
}

func (l *DictionaryLemmatizer) isBase(word string) bool {
	l.mu.Lock()
	inDict := l.dict.InDict(word)
	l.mu.Unlock()
	return inDict && slices.Contains(l.lemmas(word), word)
}

// StemLemmatizer substitutes the Snowball English stemmer for a dictionary.
// It ignores the part of speech and produces stems rather than words, which
// trades readability of the normalized text for a smaller footprint.
type StemLemmatizer struct{}

func (StemLemmatizer) Lemma(word string, _ POS) string {
	return english.Stem(word, true)
}

// NewLemmatizer resolves a lemmatizer by its configuration name.
func NewLemmatizer(name string) (Lemmatizer, error) {
	switch name {
	case "dictionary", "":
		l, err := DefaultDictionaryLemmatizer()
		if err != nil {
			return nil, err
		}
		return l, nil
	case "stem":
		return StemLemmatizer{}, nil
	default:
		return nil, fmt.Errorf("unknown lemmatizer %q", name)
	}
}
