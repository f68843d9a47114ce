package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// TermEntry is one vocabulary entry in term order, as written to disk.
type TermEntry struct {
	Term string
	Docs *roaring.Bitmap
}

// MemoryIndex accumulates postings for one field while a generation is
// built.
type MemoryIndex struct {
	mu       sync.RWMutex
	field    Field
	index    map[string]*roaring.Bitmap
	docCount int
}

func NewMemoryIndex(field Field) *MemoryIndex {
	return &MemoryIndex{
		field: field,
		index: make(map[string]*roaring.Bitmap),
	}
}

// AddDocument records every distinct token of the document's field text.
func (m *MemoryIndex) AddDocument(doc *Document) {
	tokens := strings.Fields(doc.Normalized(m.field))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range tokens {
		bm, ok := m.index[tok]
		if !ok {
			bm = roaring.New()
			m.index[tok] = bm
		}
		bm.Add(doc.ID)
	}
	m.docCount++
}

// Snapshot returns the vocabulary sorted by term with run-optimized bitmaps.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, bm := range m.index {
		docs := bm.Clone()
		docs.RunOptimize()
		entries = append(entries, TermEntry{Term: term, Docs: docs})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Freeze returns a read-only FieldIndex over a copy of the postings.
func (m *MemoryIndex) Freeze() *FieldIndex {
	entries := m.Snapshot()
	postings := make(map[string]*roaring.Bitmap, len(entries))
	for _, e := range entries {
		postings[e.Term] = e.Docs
	}
	return NewFieldIndex(m.field, postings)
}

func (m *MemoryIndex) Field() Field { return m.field }

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}
