package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite keeps records in the etags table of a crawl database.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dbPath and initializes the schema.
func OpenSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec(createEtagsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create etags schema: %w", err)
	}

	return &SQLite{conn: conn}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Lookup returns the record for baseURL or ErrNotFound.
func (s *SQLite) Lookup(ctx context.Context, baseURL string) (*Record, error) {
	var rec Record
	err := s.conn.QueryRowContext(ctx, selectEtag, baseURL).
		Scan(&rec.BaseURL, &rec.ETag, &rec.PageNumber, &rec.UsedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		StoreErrors.WithLabelValues("sqlite", "lookup").Inc()
		return nil, fmt.Errorf("failed to query etag: %w", err)
	}
	return &rec, nil
}

// Upsert inserts the record or overwrites its etag and page_no.
func (s *SQLite) Upsert(ctx context.Context, baseURL string, pageNumber int, etag string) error {
	if _, err := s.conn.ExecContext(ctx, upsertEtag, baseURL, etag, pageNumber); err != nil {
		StoreErrors.WithLabelValues("sqlite", "upsert").Inc()
		return fmt.Errorf("failed to upsert etag for %s: %w", baseURL, err)
	}
	return nil
}

// RecordHit increments used_count. Updating a missing row affects nothing.
func (s *SQLite) RecordHit(ctx context.Context, baseURL string) error {
	if _, err := s.conn.ExecContext(ctx, incrementUsedCount, baseURL); err != nil {
		StoreErrors.WithLabelValues("sqlite", "record_hit").Inc()
		return fmt.Errorf("failed to record etag hit for %s: %w", baseURL, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM etags").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count etags: %w", err)
	}
	return n, nil
}
