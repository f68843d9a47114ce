// Package index holds the corpus data model: documents, the per-field
// inverted indices served at query time, and the mutable builder used while
// an index generation is constructed.
package index

import "strings"

// Field is an indexed document attribute. Quote and title are matched and
// scored independently; author is display-only.
type Field int

const (
	FieldQuote Field = iota
	FieldTitle
)

// Fields lists the indexed fields in artifact order.
var Fields = []Field{FieldQuote, FieldTitle}

func (f Field) String() string {
	switch f {
	case FieldQuote:
		return "quote"
	case FieldTitle:
		return "title"
	default:
		return "unknown"
	}
}

// Document is immutable once an index generation is built. ID equals the
// document's position in the document table.
type Document struct {
	ID              uint32 `json:"id"`
	Quote           string `json:"quote"`
	Author          string `json:"author"`
	Title           string `json:"title"`
	QuoteNormalized string `json:"quote_normalized"`
	TitleNormalized string `json:"title_normalized"`
}

// Normalized returns the space-joined lemma text of field f.
func (d *Document) Normalized(f Field) string {
	if f == FieldTitle {
		return d.TitleNormalized
	}
	return d.QuoteNormalized
}

// Tokens splits the normalized text of field f.
func (d *Document) Tokens(f Field) []string {
	return strings.Fields(d.Normalized(f))
}

// Header is the display line "author, title".
func (d *Document) Header() string {
	return d.Author + ", " + d.Title
}

// Format returns the header and body shown for a search hit.
func (d *Document) Format() (header, body string) {
	return d.Header(), d.Quote
}
