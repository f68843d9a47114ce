package normalizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jdkato/prose/v2"
)

// POS is the coarse part of speech the lemmatizer understands.
type POS byte

const (
	Noun      POS = 'n'
	Verb      POS = 'v'
	Adjective POS = 'a'
	Adverb    POS = 'r'
)

func (p POS) String() string {
	switch p {
	case Verb:
		return "verb"
	case Adjective:
		return "adjective"
	case Adverb:
		return "adverb"
	default:
		return "noun"
	}
}

// CoarsePOS maps a Penn Treebank tag to a coarse part of speech by its first
// letter. Anything unrecognised is a noun.
func CoarsePOS(tag string) POS {
	switch {
	case strings.HasPrefix(tag, "J"):
		return Adjective
	case strings.HasPrefix(tag, "V"):
		return Verb
	case strings.HasPrefix(tag, "N"):
		return Noun
	case strings.HasPrefix(tag, "R"):
		return Adverb
	default:
		return Noun
	}
}

// Tagger assigns one Penn Treebank tag per input token. Implementations
// must be safe for concurrent use and return exactly len(tokens) tags.
type Tagger interface {
	Tag(tokens []string) []string
}

// NounTagger tags every token as a singular noun. It is the cheap choice
// when part-of-speech sensitivity is not wanted.
type NounTagger struct{}

func (NounTagger) Tag(tokens []string) []string {
	tags := make([]string, len(tokens))
	for i := range tags {
		tags[i] = "NN"
	}
	return tags
}

// PerceptronTagger wraps prose's averaged-perceptron tagger. The model is
// loaded once and shared by every document.
type PerceptronTagger struct {
	model *prose.Model
}

var (
	perceptronOnce sync.Once
	perceptron     *PerceptronTagger
	perceptronErr  error
)

// DefaultPerceptronTagger returns the process-wide tagger, loading the
// embedded model on first use.
func DefaultPerceptronTagger() (*PerceptronTagger, error) {
	perceptronOnce.Do(func() {
		doc, err := prose.NewDocument("warm up",
			prose.WithSegmentation(false),
			prose.WithExtraction(false),
		)
		if err != nil {
			perceptronErr = fmt.Errorf("loading perceptron tagger: %w", err)
			return
		}
		perceptron = &PerceptronTagger{model: doc.Model}
	})
	return perceptron, perceptronErr
}

// Tag runs the perceptron over the space-joined tokens and aligns prose's
// tokens back onto ours. A token prose split differently takes the tag of
// its first piece; anything left unaligned is tagged NN.
func (t *PerceptronTagger) Tag(tokens []string) []string {
	tags := NounTagger{}.Tag(tokens)
	if len(tokens) == 0 {
		return tags
	}
	doc, err := prose.NewDocument(strings.Join(tokens, " "),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
		prose.UsingModel(t.model),
	)
	if err != nil {
		return tags
	}
	tagged := doc.Tokens()
	j := 0
	for i, tok := range tokens {
		if j >= len(tagged) {
			break
		}
		if tagged[j].Text == tok {
			tags[i] = tagged[j].Tag
			j++
			continue
		}
		// Rejoin pieces until they spell the token.
		var sb strings.Builder
		k := j
		for k < len(tagged) && sb.Len() < len(tok) {
			sb.WriteString(tagged[k].Text)
			k++
		}
		if sb.String() == tok {
			tags[i] = tagged[j].Tag
			j = k
		}
	}
	return tags
}

// NewTagger resolves a tagger by its configuration name.
func NewTagger(name string) (Tagger, error) {
	switch name {
	case "perceptron", "":
		t, err := DefaultPerceptronTagger()
		if err != nil {
			return nil, err
		}
		return t, nil
	case "none":
		return NounTagger{}, nil
	default:
		return nil, fmt.Errorf("unknown tagger %q", name)
	}
}
