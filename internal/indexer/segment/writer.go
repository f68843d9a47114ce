package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/quotex/pkg/errors"
)

// Generation describes a written generation.
type Generation struct {
	Name      string
	Dir       string
	Documents int
	Terms     map[index.Field]int
}

// Writer creates generation directories under dataDir.
type Writer struct {
	dataDir string
	now     func() time.Time
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir, now: time.Now}
}

// Write persists docs and the per-field vocabularies as a new generation and
// points CURRENT at it. The directory is assembled under a .tmp name and
// renamed into place, so readers never observe a partial generation.
func (w *Writer) Write(docs []index.Document, fields map[index.Field][]index.TermEntry) (*Generation, error) {
	if len(docs) == 0 {
		return nil, apperrors.ErrZeroDocuments
	}
	created := w.now()
	name := fmt.Sprintf("gen-%d", created.UnixNano())
	finalDir := filepath.Join(w.dataDir, name)
	tmpDir := finalDir + ".tmp"
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating generation directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := writeDocuments(filepath.Join(tmpDir, DocumentsFile), docs, created); err != nil {
		cleanup()
		return nil, err
	}
	gen := &Generation{Name: name, Dir: finalDir, Documents: len(docs), Terms: make(map[index.Field]int)}
	for _, f := range index.Fields {
		entries := fields[f]
		if err := writePostings(filepath.Join(tmpDir, PostingsFile(f)), entries, uint32(len(docs))); err != nil {
			cleanup()
			return nil, fmt.Errorf("%s postings: %w", f, err)
		}
		gen.Terms[f] = len(entries)
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		cleanup()
		return nil, fmt.Errorf("publishing generation directory: %w", err)
	}
	if err := SetCurrent(w.dataDir, name); err != nil {
		return nil, err
	}
	return gen, nil
}

func writeDocuments(path string, docs []index.Document, created time.Time) error {
	payload, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}
	header := make([]byte, DocumentsHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], DocumentsMagic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(docs)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(len(payload)))
	binary.LittleEndian.PutUint64(header[24:32], uint64(created.Unix()))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(docs)))

	return writeFileSync(path, header, payload, footer)
}

func writePostings(path string, entries []index.TermEntry, docCount uint32) error {
	var postings bytes.Buffer
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		offset := int64(postings.Len())
		n, err := entry.Docs.WriteTo(&postings)
		if err != nil {
			return fmt.Errorf("encoding postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset,
			PostLen:    int(n),
			DocFreq:    int(entry.Docs.GetCardinality()),
		})
	}
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}

	postStart := int64(PostingsHeaderSize)
	dictStart := postStart + int64(postings.Len())
	header := make([]byte, PostingsHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], PostingsMagic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(entries)))
	binary.LittleEndian.PutUint32(header[12:16], docCount)
	binary.LittleEndian.PutUint64(header[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(header[32:40], uint64(postStart))
	binary.LittleEndian.PutUint64(header[40:48], uint64(postings.Len()))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(postings.Bytes()))

	return writeFileSync(path, header, postings.Bytes(), dictData, footer)
}

func writeFileSync(path string, parts ...[]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	for _, p := range parts {
		if _, err := f.Write(p); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
