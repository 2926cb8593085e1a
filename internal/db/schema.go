package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// Open opens (creating if needed) the sqlite database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer, and an in-memory database only lives as
	// long as its one connection
	database.SetMaxOpenConns(1)

	pragmas := []string{"pragma foreign_keys = on", "pragma busy_timeout = 5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "pragma journal_mode = wal")
	}
	for _, pragma := range pragmas {
		_, err = database.Exec(pragma)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	_, err = database.Exec(Schema)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return database, nil
}

// OpenReadOnly opens an existing database without applying the schema or
// changing its journal mode. Writes through it fail.
func OpenReadOnly(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(1)

	_, err = database.Exec("pragma busy_timeout = 5000")
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("open %s read only: %w", path, err)
	}
	return database, nil
}
