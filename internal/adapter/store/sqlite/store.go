// Package sqlite persists the review log: one row per posting attempt,
// so operators can answer "what did we post to that PR and when" without
// trawling log aggregators.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded posting outcome.
type Entry struct {
	EntryID       string
	Owner         string
	Repo          string
	PullNumber    int
	CorrelationID string
	Provider      string
	Model         string
	// Status is "posted", "failed_notice", or "failed".
	Status    string
	Error     string
	CreatedAt time.Time
}

// Store is the SQLite-backed review log.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the review log at the given
// path. Use ":memory:" for tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_log (
		entry_id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		pull_number INTEGER NOT NULL,
		correlation_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('posted', 'failed_notice', 'failed')),
		error TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_log_repo_pr ON review_log(owner, repo, pull_number);
	CREATE INDEX IF NOT EXISTS idx_review_log_correlation ON review_log(correlation_id);
	CREATE INDEX IF NOT EXISTS idx_review_log_created ON review_log(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record stores one posting outcome.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO review_log (entry_id, owner, repo, pull_number, correlation_id, provider, model, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.EntryID,
		entry.Owner,
		entry.Repo,
		entry.PullNumber,
		entry.CorrelationID,
		entry.Provider,
		entry.Model,
		entry.Status,
		entry.Error,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record review log entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries, limited by count.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT entry_id, owner, repo, pull_number, correlation_id, provider, model, status, error, created_at
		FROM review_log
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListForPullRequest returns every entry for one PR, oldest first.
func (s *Store) ListForPullRequest(ctx context.Context, owner, repo string, pullNumber int) ([]Entry, error) {
	query := `
		SELECT entry_id, owner, repo, pull_number, correlation_id, provider, model, status, error, created_at
		FROM review_log
		WHERE owner = ? AND repo = ? AND pull_number = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, owner, repo, pullNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log for pull request: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt int64

		if err := rows.Scan(
			&entry.EntryID,
			&entry.Owner,
			&entry.Repo,
			&entry.PullNumber,
			&entry.CorrelationID,
			&entry.Provider,
			&entry.Model,
			&entry.Status,
			&entry.Error,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review log entry: %w", err)
		}

		entry.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review log: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
