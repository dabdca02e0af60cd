package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"scoreframe/internal/config"
)

// Store records conversion requests in SQLite. The journal is observability
// only: the pipeline itself is stateless and runs fine with a nil *Store.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    status TEXT NOT NULL,
    error_code TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    output_name TEXT NOT NULL DEFAULT '',
    frame_count INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
`

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.JournalPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Begin records a newly received request.
func (s *Store) Begin(ctx context.Context, requestID, filename string) error {
	if s == nil {
		return nil
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO requests (request_id, filename, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		requestID,
		filename,
		StatusReceived,
		timestamp,
		timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// Advance moves a request to the next stage status.
func (s *Store) Advance(ctx context.Context, requestID, status string) error {
	if s == nil {
		return nil
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE request_id = ?`,
		status,
		timestamp,
		requestID,
	)
	if err != nil {
		return fmt.Errorf("advance request: %w", err)
	}
	return nil
}

// Finish marks a request terminal. A non-empty error code records a failure;
// otherwise the request is marked responded with its output details.
func (s *Store) Finish(ctx context.Context, requestID string, outcome Outcome) error {
	if s == nil {
		return nil
	}
	status := StatusResponded
	if outcome.ErrorCode != "" {
		status = StatusFailed
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE requests SET
            status = ?, error_code = ?, error_message = ?,
            output_name = ?, frame_count = ?, duration_seconds = ?, updated_at = ?
         WHERE request_id = ?`,
		status,
		outcome.ErrorCode,
		outcome.ErrorMessage,
		outcome.OutputName,
		outcome.FrameCount,
		outcome.DurationSeconds,
		timestamp,
		requestID,
	)
	if err != nil {
		return fmt.Errorf("finish request: %w", err)
	}
	return nil
}

// GetByRequestID fetches a single journal entry.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Entry, error) {
	if s == nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, request_id, filename, status, error_code, error_message,
                output_name, frame_count, duration_seconds, created_at, updated_at
         FROM requests WHERE request_id = ?`,
		requestID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, request_id, filename, status, error_code, error_message,
                output_name, frame_count, duration_seconds, created_at, updated_at
         FROM requests ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.Filename,
		&entry.Status,
		&entry.ErrorCode,
		&entry.ErrorMessage,
		&entry.OutputName,
		&entry.FrameCount,
		&entry.DurationSeconds,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTimestamp(createdAt)
	entry.UpdatedAt = parseTimestamp(updatedAt)
	return &entry, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
