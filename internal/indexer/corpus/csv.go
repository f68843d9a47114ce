package corpus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVSource reads a CSV file whose header names quote, author and title
// columns, in any order and any case. Other columns are ignored.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Read(ctx context.Context) ([]RawDocument, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

func (s *CSVSource) Close() error { return nil }

// ReadCSV parses CSV corpus data from r.
func ReadCSV(ctx context.Context, r io.Reader) ([]RawDocument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("corpus has no header row")
		}
		return nil, fmt.Errorf("reading corpus header: %w", err)
	}
	cols := map[string]int{"quote": -1, "author": -1, "title": -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	}
	for name, i := range cols {
		if i < 0 {
			return nil, fmt.Errorf("corpus header lacks a %q column", name)
		}
	}
	field := func(rec []string, name string) string {
		if i := cols[name]; i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var docs []RawDocument
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading corpus line %d: %w", line, err)
		}
		docs = append(docs, RawDocument{
			Quote:  field(rec, "quote"),
			Author: field(rec, "author"),
			Title:  field(rec, "title"),
		})
	}
	return docs, nil
}
