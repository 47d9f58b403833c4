// Package prefs is the durable, namespaced string key/value store that backs
// the device's persisted configuration.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/electionneedle/needle/internal/prefs/migrate"
)

const defaultQueryTimeout = 5 * time.Second

// Store manages the DuckDB connection holding preference rows.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates the preferences database.
// If dbPath is empty, an in-memory database is used.
func NewStore(dbPath string) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("prefs: mkdir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("prefs: open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if _, err := migrate.NewRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("prefs: migrate: %w", err)
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: defaultQueryTimeout,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the on-disk location, empty for in-memory stores.
func (s *Store) DBPath() string {
	return s.dbPath
}

// GetString returns the value stored under namespace/key, or def when unset.
func (s *Store) GetString(namespace, key, def string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	var v string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE namespace = ? AND key = ?", namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get %s/%s: %w", namespace, key, err)
	}
	return v, nil
}

// PutStrings writes all pairs in one transaction; either every key is updated or none is.
func (s *Store) PutStrings(namespace string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("prefs: begin: %w", err)
	}
	for k, v := range values {
		_, err := tx.ExecContext(ctx, `INSERT INTO preferences (namespace, key, value, updated_at)
			VALUES (?, ?, ?, current_timestamp)
			ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			namespace, k, v)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("prefs: put %s/%s: %w", namespace, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("prefs: commit: %w", err)
	}
	return nil
}

// PutString writes a single key.
func (s *Store) PutString(namespace, key, value string) error {
	return s.PutStrings(namespace, map[string]string{key: value})
}
