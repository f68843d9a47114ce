package corpus

import (
	"database/sql"
	"fmt"

	_ "github.com/glebarez/sqlite"
)

// OpenSQLite reads the corpus from a SQLite database file with the pure-Go
// driver.
func OpenSQLite(path, query string) (*SQLSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite corpus %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite corpus %s: %w", path, err)
	}
	return &SQLSource{db: db, query: query, closer: db.Close}, nil
}
