package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
	"github.com/RoaringBitmap/roaring"
)

// Snapshot is a fully loaded generation.
type Snapshot struct {
	Generation string
	Documents  []index.Document
	Fields     map[index.Field]*index.FieldIndex
}

// ReadGeneration loads every artifact of the generation directory dir. Any
// structural problem is reported as apperrors.ErrCorruptIndex; a missing
// directory or file is reported as the underlying I/O error.
func ReadGeneration(dir string) (*Snapshot, error) {
	docs, err := ReadDocuments(filepath.Join(dir, DocumentsFile))
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Generation: filepath.Base(dir),
		Documents:  docs,
		Fields:     make(map[index.Field]*index.FieldIndex, len(index.Fields)),
	}
	for _, f := range index.Fields {
		fi, err := ReadPostings(filepath.Join(dir, PostingsFile(f)), f, uint32(len(docs)))
		if err != nil {
			return nil, err
		}
		snap.Fields[f] = fi
	}
	return snap, nil
}

// ReadDocuments loads and validates a documents file.
func ReadDocuments(path string) ([]index.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	name := filepath.Base(path)
	if len(data) < DocumentsHeaderSize+FooterSize {
		return nil, apperrors.Corruptf("%s: truncated file of %d bytes", name, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != DocumentsMagic {
		return nil, apperrors.Corruptf("%s: bad magic %08x", name, magic)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != FormatVersion {
		return nil, apperrors.Corruptf("%s: unsupported version %d", name, v)
	}
	count := binary.LittleEndian.Uint32(data[8:12])
	payloadLen := binary.LittleEndian.Uint64(data[16:24])
	if payloadLen != uint64(len(data)-DocumentsHeaderSize-FooterSize) {
		return nil, apperrors.Corruptf("%s: payload length %d does not match file size", name, payloadLen)
	}
	payload := data[DocumentsHeaderSize : DocumentsHeaderSize+int(payloadLen)]
	footer := data[DocumentsHeaderSize+int(payloadLen):]
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(payload) {
		return nil, apperrors.Corruptf("%s: checksum mismatch", name)
	}
	if n := binary.LittleEndian.Uint32(footer[4:8]); n != count {
		return nil, apperrors.Corruptf("%s: footer count %d, header count %d", name, n, count)
	}

	var docs []index.Document
	if err := json.Unmarshal(payload, &docs); err != nil {
		return nil, apperrors.Corruptf("%s: %v", name, err)
	}
	if uint32(len(docs)) != count {
		return nil, apperrors.Corruptf("%s: header declares %d documents, payload has %d", name, count, len(docs))
	}
	if len(docs) == 0 {
		return nil, apperrors.ErrZeroDocuments
	}
	for i := range docs {
		if docs[i].ID != uint32(i) {
			return nil, apperrors.Corruptf("%s: document at position %d has id %d", name, i, docs[i].ID)
		}
	}
	return docs, nil
}

// ReadPostings loads a postings file into memory. docCount bounds the
// document ids a bitmap may contain.
func ReadPostings(path string, field index.Field, docCount uint32) (*index.FieldIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s postings: %w", field, err)
	}
	name := filepath.Base(path)
	if len(data) < PostingsHeaderSize+FooterSize {
		return nil, apperrors.Corruptf("%s: truncated file of %d bytes", name, len(data))
	}
	h := PostingsHeader{
		Magic:      binary.LittleEndian.Uint32(data[0:4]),
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		TermCount:  binary.LittleEndian.Uint32(data[8:12]),
		DocCount:   binary.LittleEndian.Uint32(data[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(data[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(data[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(data[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(data[40:48])),
	}
	if h.Magic != PostingsMagic {
		return nil, apperrors.Corruptf("%s: bad magic %08x", name, h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, apperrors.Corruptf("%s: unsupported version %d", name, h.Version)
	}
	if h.DocCount != docCount {
		return nil, apperrors.Corruptf("%s: built for %d documents, table has %d", name, h.DocCount, docCount)
	}
	body := int64(len(data) - FooterSize)
	if h.PostOffset != PostingsHeaderSize || h.PostSize < 0 || h.DictSize < 0 ||
		h.DictOffset < h.PostOffset || h.DictOffset > body ||
		h.PostSize != h.DictOffset-h.PostOffset || h.DictSize != body-h.DictOffset {
		return nil, apperrors.Corruptf("%s: section layout does not match file size", name)
	}
	postings := data[h.PostOffset:h.DictOffset]
	dictData := data[h.DictOffset:body]
	footer := data[body:]
	if binary.LittleEndian.Uint32(footer[0:4]) != crc32.ChecksumIEEE(dictData) {
		return nil, apperrors.Corruptf("%s: dictionary checksum mismatch", name)
	}
	if binary.LittleEndian.Uint32(footer[4:8]) != crc32.ChecksumIEEE(postings) {
		return nil, apperrors.Corruptf("%s: postings checksum mismatch", name)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		return nil, apperrors.Corruptf("%s: dictionary: %v", name, err)
	}
	if uint32(len(dict)) != h.TermCount {
		return nil, apperrors.Corruptf("%s: header declares %d terms, dictionary has %d", name, h.TermCount, len(dict))
	}

	bitmaps := make(map[string]*roaring.Bitmap, len(dict))
	for i, e := range dict {
		if i > 0 && dict[i-1].Term >= e.Term {
			return nil, apperrors.Corruptf("%s: dictionary not sorted at %q", name, e.Term)
		}
		if e.PostOffset < 0 || e.PostLen <= 0 || e.PostOffset > h.PostSize || int64(e.PostLen) > h.PostSize-e.PostOffset {
			return nil, apperrors.Corruptf("%s: term %q points outside the postings section", name, e.Term)
		}
		bm, err := decodeBitmap(postings[e.PostOffset : e.PostOffset+int64(e.PostLen)])
		if err != nil {
			return nil, apperrors.Corruptf("%s: term %q: %v", name, e.Term, err)
		}
		if bm.IsEmpty() || int(bm.GetCardinality()) != e.DocFreq {
			return nil, apperrors.Corruptf("%s: term %q has %d postings, dictionary says %d", name, e.Term, bm.GetCardinality(), e.DocFreq)
		}
		if bm.Maximum() >= docCount {
			return nil, apperrors.Corruptf("%s: term %q lists document %d of %d", name, e.Term, bm.Maximum(), docCount)
		}
		bitmaps[e.Term] = bm
	}
	return index.NewFieldIndex(field, bitmaps), nil
}

func decodeBitmap(buf []byte) (bm *roaring.Bitmap, err error) {
	defer func() {
		if r := recover(); r != nil {
			bm, err = nil, fmt.Errorf("malformed bitmap: %v", r)
		}
	}()
	bm = roaring.New()
	if err := bm.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return bm, nil
}
