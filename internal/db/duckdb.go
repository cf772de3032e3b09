// Package db manages the DuckDB handle backing snapshot persistence.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
)

// Open opens (or creates) the snapshot database at path and ensures the
// key/value table exists. An empty path opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	// DuckDB works best with a single connection.
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS kv (key VARCHAR PRIMARY KEY, value VARCHAR)`); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return database, nil
}
