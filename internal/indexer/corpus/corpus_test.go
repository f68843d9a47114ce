package corpus

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	data := "\ufeffTitle,id,Quote,AUTHOR\n" +
		"Hamlet,1,To be or not to be,Shakespeare\n" +
		"The Fellowship,2,\"Not all who wander are lost\",Tolkien\n" +
		"Short,3\n"
	docs, err := ReadCSV(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, RawDocument{Quote: "To be or not to be", Author: "Shakespeare", Title: "Hamlet"}, docs[0])
	assert.Equal(t, "Not all who wander are lost", docs[1].Quote)
	assert.Equal(t, RawDocument{Title: "Short"}, docs[2])
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("quote,title\na,b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"author"`)

	_, err = ReadCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(path, []byte("quote,author,title\nq,a,t\n"), 0o644))
	src, err := Open(config.CorpusConfig{Driver: "csv", Path: path}, config.PostgresConfig{})
	require.NoError(t, err)
	defer src.Close()
	docs, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RawDocument{{Quote: "q", Author: "a", Title: "t"}}, docs)
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE quotes (id INTEGER PRIMARY KEY, quote TEXT, author TEXT, title TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO quotes (id, quote, author, title) VALUES
		(2, 'Not all who wander are lost', 'Tolkien', 'The Fellowship'),
		(1, 'To be or not to be', 'Shakespeare', NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := Open(config.CorpusConfig{
		Driver: "sqlite",
		Path:   path,
		Query:  "SELECT quote, author, title FROM quotes ORDER BY id",
	}, config.PostgresConfig{})
	require.NoError(t, err)
	defer src.Close()

	docs, err := src.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, RawDocument{Quote: "To be or not to be", Author: "Shakespeare"}, docs[0])
	assert.Equal(t, "Tolkien", docs[1].Author)
}

func TestSQLSourceRejectsWrongShape(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQLSource(db, "SELECT 1, 2").Read(context.Background())
	require.Error(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.CorpusConfig{Driver: "mongo"}, config.PostgresConfig{})
	assert.Error(t, err)
}
