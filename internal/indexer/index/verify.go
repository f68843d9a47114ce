package index

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
)

// CheckConsistency verifies that docs form an id-ordered table and that fi
// lists a document under a token exactly when the token occurs in that
// document's field text.
func CheckConsistency(docs []Document, fi *FieldIndex) error {
	n := uint32(len(docs))
	for i := range docs {
		if docs[i].ID != uint32(i) {
			return apperrors.Corruptf("document at position %d has id %d", i, docs[i].ID)
		}
	}
	for term, bm := range fi.postings {
		if bm.IsEmpty() {
			return apperrors.Corruptf("%s: token %q has an empty posting list", fi.field, term)
		}
		if last := bm.Maximum(); last >= n {
			return apperrors.Corruptf("%s: token %q lists document %d of %d", fi.field, term, last, n)
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := it.Next()
			if !containsToken(docs[id].Tokens(fi.field), term) {
				return apperrors.Corruptf("%s: document %d listed under %q does not contain it", fi.field, id, term)
			}
		}
	}
	for i := range docs {
		for _, tok := range docs[i].Tokens(fi.field) {
			if !fi.Postings(tok).Contains(docs[i].ID) {
				return apperrors.Corruptf("%s: document %d contains %q but is missing from its postings", fi.field, i, tok)
			}
		}
	}
	return nil
}

func containsToken(tokens []string, term string) bool {
	for _, t := range tokens {
		if t == term {
			return true
		}
	}
	return false
}
