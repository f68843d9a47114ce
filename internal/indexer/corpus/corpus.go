// Package corpus reads the raw quotation corpus an index generation is
// built from. Every source yields documents in a stable order; the builder
// assigns ids from that order.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/postgres"
)

// RawDocument is one quotation as stored in the corpus.
type RawDocument struct {
	Quote  string
	Author string
	Title  string
}

// Source yields the whole corpus.
type Source interface {
	Read(ctx context.Context) ([]RawDocument, error)
	Close() error
}

// Open resolves the configured corpus driver.
func Open(cfg config.CorpusConfig, pg config.PostgresConfig) (Source, error) {
	switch cfg.Driver {
	case "csv":
		return NewCSVSource(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(cfg.Path, cfg.Query)
	case "postgres":
		client, err := postgres.New(pg)
		if err != nil {
			return nil, err
		}
		return &SQLSource{db: client.DB, query: cfg.Query, closer: client.Close}, nil
	default:
		return nil, fmt.Errorf("unknown corpus driver %q", cfg.Driver)
	}
}

// SQLSource runs a query returning (quote, author, title) rows. NULL columns
// read as empty strings.
type SQLSource struct {
	db     *sql.DB
	query  string
	closer func() error
}

// NewSQLSource wraps an open database handle. The caller keeps ownership of
// db.
func NewSQLSource(db *sql.DB, query string) *SQLSource {
	return &SQLSource{db: db, query: query}
}

func (s *SQLSource) Read(ctx context.Context) ([]RawDocument, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading corpus columns: %w", err)
	}
	if len(cols) != 3 {
		return nil, fmt.Errorf("corpus query must return quote, author, title; got %s", strings.Join(cols, ", "))
	}
	var docs []RawDocument
	for rows.Next() {
		var quote, author, title sql.NullString
		if err := rows.Scan(&quote, &author, &title); err != nil {
			return nil, fmt.Errorf("scanning corpus row %d: %w", len(docs), err)
		}
		docs = append(docs, RawDocument{Quote: quote.String, Author: author.String, Title: title.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	return docs, nil
}

func (s *SQLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
