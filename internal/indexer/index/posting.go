package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

var emptyPostings = roaring.New()

// FieldIndex maps a token to the ids of the documents whose field contains
// it. It is read-only after construction; the bitmaps it returns are shared
// and must not be modified.
type FieldIndex struct {
	field    Field
	postings map[string]*roaring.Bitmap
}

func NewFieldIndex(field Field, postings map[string]*roaring.Bitmap) *FieldIndex {
	if postings == nil {
		postings = make(map[string]*roaring.Bitmap)
	}
	return &FieldIndex{field: field, postings: postings}
}

func (fi *FieldIndex) Field() Field { return fi.field }

// Postings returns the posting bitmap for token. A token absent from the
// vocabulary yields an empty bitmap, never nil.
func (fi *FieldIndex) Postings(token string) *roaring.Bitmap {
	if bm, ok := fi.postings[token]; ok {
		return bm
	}
	return emptyPostings
}

// DocFreq is the number of documents whose field contains token.
func (fi *FieldIndex) DocFreq(token string) int {
	return int(fi.Postings(token).GetCardinality())
}

// Len is the vocabulary size.
func (fi *FieldIndex) Len() int { return len(fi.postings) }

// Terms returns the vocabulary in ascending order.
func (fi *FieldIndex) Terms() []string {
	terms := make([]string, 0, len(fi.postings))
	for t := range fi.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}
