// Package db opens the embedded warehouse database. The pipeline opens it
// read-write and rebuilds every table; the API server opens it read-only and
// never writes.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) the warehouse file for a pipeline run.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create warehouse directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", url.PathEscape(path))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return conn, nil
}

// OpenReadOnly opens an existing warehouse file for serving. It fails when
// the file is absent so callers can surface a "pipeline not run" condition
// instead of silently serving an empty database.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("warehouse file %s: %w", path, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_foreign_keys=on", url.PathEscape(path))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse read-only: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return conn, nil
}
