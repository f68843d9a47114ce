// Package store is the serving-side Document Store: one loaded index
// generation with its cached field statistics, and the holder that lets a
// reload swap generations under concurrent queries.
package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
)

// Stats are the corpus-wide scalars BM25 needs, computed once at load.
type Stats struct {
	Documents   int     `json:"documents"`
	AvgQuoteLen float64 `json:"avg_words_quote"`
	AvgTitleLen float64 `json:"avg_words_title"`
	QuoteTerms  int     `json:"quote_terms"`
	TitleTerms  int     `json:"title_terms"`
}

// AvgLen is the mean normalized token count of field f.
func (s Stats) AvgLen(f index.Field) float64 {
	if f == index.FieldTitle {
		return s.AvgTitleLen
	}
	return s.AvgQuoteLen
}

// Store is read-only after New returns and safe for any number of
// concurrent readers.
type Store struct {
	generation string
	docs       []index.Document
	fields     map[index.Field]*index.FieldIndex
	tokens     map[index.Field][][]string
	stats      Stats
}

// New validates the pieces of a generation and computes its statistics.
func New(generation string, docs []index.Document, fields map[index.Field]*index.FieldIndex) (*Store, error) {
	if len(docs) == 0 {
		return nil, apperrors.ErrZeroDocuments
	}
	for i := range docs {
		if docs[i].ID != uint32(i) {
			return nil, apperrors.Corruptf("document at position %d has id %d", i, docs[i].ID)
		}
	}
	s := &Store{
		generation: generation,
		docs:       docs,
		fields:     make(map[index.Field]*index.FieldIndex, len(index.Fields)),
		tokens:     make(map[index.Field][][]string, len(index.Fields)),
	}
	totals := make(map[index.Field]int, len(index.Fields))
	for _, f := range index.Fields {
		fi, ok := fields[f]
		if !ok || fi == nil {
			return nil, apperrors.Corruptf("missing %s index", f)
		}
		s.fields[f] = fi
		perDoc := make([][]string, len(docs))
		for i := range docs {
			perDoc[i] = strings.Fields(docs[i].Normalized(f))
			totals[f] += len(perDoc[i])
		}
		s.tokens[f] = perDoc
	}
	n := float64(len(docs))
	s.stats = Stats{
		Documents:   len(docs),
		AvgQuoteLen: float64(totals[index.FieldQuote]) / n,
		AvgTitleLen: float64(totals[index.FieldTitle]) / n,
		QuoteTerms:  s.fields[index.FieldQuote].Len(),
		TitleTerms:  s.fields[index.FieldTitle].Len(),
	}
	return s, nil
}

// Load reads the generation directory dir.
func Load(dir string) (*Store, error) {
	snap, err := segment.ReadGeneration(dir)
	if err != nil {
		return nil, fmt.Errorf("loading generation %s: %w", filepath.Base(dir), err)
	}
	return New(snap.Generation, snap.Documents, snap.Fields)
}

// LoadCurrent reads the generation dataDir/CURRENT points at.
func LoadCurrent(dataDir string) (*Store, error) {
	name, err := segment.Current(dataDir)
	if err != nil {
		return nil, err
	}
	return Load(filepath.Join(dataDir, name))
}

func (s *Store) Generation() string { return s.generation }

func (s *Store) Stats() Stats { return s.stats }

func (s *Store) DocCount() int { return len(s.docs) }

// Document returns the document with id, or nil when out of range.
func (s *Store) Document(id uint32) *index.Document {
	if int(id) >= len(s.docs) {
		return nil
	}
	return &s.docs[id]
}

func (s *Store) Field(f index.Field) *index.FieldIndex { return s.fields[f] }

// Tokens returns the pre-split normalized text of field f of document id.
func (s *Store) Tokens(id uint32, f index.Field) []string {
	perDoc := s.tokens[f]
	if int(id) >= len(perDoc) {
		return nil
	}
	return perDoc[id]
}

// Holder publishes the current Store. Readers take one snapshot per query
// and never block; Swap installs a fully built replacement.
type Holder struct {
	current atomic.Pointer[Store]
}

// Current returns the serving Store, or nil before the first load.
func (h *Holder) Current() *Store { return h.current.Load() }

// Swap installs s and returns the previous Store.
func (h *Holder) Swap(s *Store) *Store { return h.current.Swap(s) }

// Get returns the serving Store or ErrIndexNotLoaded.
func (h *Holder) Get() (*Store, error) {
	s := h.current.Load()
	if s == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return s, nil
}
