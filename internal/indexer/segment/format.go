// Package segment persists an index generation: the document table and one
// postings file per indexed field, grouped in a generation directory and
// published through an atomically replaced CURRENT pointer.
//
// All integers are little-endian. Documents file (documents.qdx):
//
//	header  32 bytes  magic "QDOC", version, doc count, reserved, payload length, created at
//	payload           JSON array of index.Document ordered by id
//	footer   8 bytes  crc32(payload), doc count
//
// Postings file (quotes.pdx, titles.pdx):
//
//	header  48 bytes  magic "QPST", version, term count, doc count,
//	                  dict offset, dict size, postings offset, postings size
//	postings          portable roaring bitmaps, back to back
//	dict              JSON array of DictEntry sorted by term
//	footer   8 bytes  crc32(dict), crc32(postings)
package segment

import (
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
)

const (
	DocumentsMagic uint32 = 0x434f4451 // "QDOC"
	PostingsMagic  uint32 = 0x54535051 // "QPST"
	FormatVersion  uint32 = 1

	DocumentsHeaderSize = 32
	PostingsHeaderSize  = 48
	FooterSize          = 8

	DocumentsFile = "documents.qdx"
	CurrentFile   = "CURRENT"
)

// PostingsFile names the postings artifact of field f.
func PostingsFile(f index.Field) string {
	switch f {
	case index.FieldTitle:
		return "titles.pdx"
	default:
		return "quotes.pdx"
	}
}

// PostingsHeader is the fixed header of a postings file.
type PostingsHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry locates one term's bitmap relative to the postings offset.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}
