// Package sqlite implements history.Store backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/crucible/internal/history"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements history.Store.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveExecution(ctx context.Context, r *history.Record) error {
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, code, stdout, stderr, error_kind, error_message, file_count, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Code, r.Stdout, r.Stderr, r.ErrorKind, r.ErrorMessage,
		r.FileCount, r.Duration.Milliseconds(), r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*history.Record, error) {
	rec, err := s.getExact(ctx, id)
	if err == nil {
		return rec, nil
	}

	// Prefix match
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, stdout, stderr, error_kind, error_message, file_count, duration_ms, created_at
		FROM executions WHERE id LIKE ? || '%'`, id)
	if err != nil {
		return nil, fmt.Errorf("querying execution: %w", err)
	}
	defer rows.Close()

	var matches []*history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("execution not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous execution prefix %q matches %d records", id, len(matches))
	}
}

func (s *SQLiteStore) getExact(ctx context.Context, id string) (*history.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, stdout, stderr, error_kind, error_message, file_count, duration_ms, created_at
		FROM executions WHERE id = ?`, id)
	return scanRecordRow(row)
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, opts history.ListOptions) ([]history.Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, stdout, stderr, error_kind, error_message, file_count, duration_ms, created_at
		FROM executions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM executions WHERE id NOT IN (
			SELECT id FROM executions ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("pruning executions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (*history.Record, error) {
	var rec history.Record
	var durationMS int64
	var createdAt string

	err := r.Scan(&rec.ID, &rec.Code, &rec.Stdout, &rec.Stderr,
		&rec.ErrorKind, &rec.ErrorMessage, &rec.FileCount, &durationMS, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scanning execution: %w", err)
	}

	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func scanRecordRow(row *sql.Row) (*history.Record, error) {
	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
