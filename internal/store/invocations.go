// ABOUTME: SQLite-backed audit log of tool invocations using modernc.org/sqlite
// ABOUTME: Records who called which tool with what outcome, with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/access-ci-org/xdmod-mcp/internal/registry"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// InvocationRecord is one persisted tool invocation.
type InvocationRecord struct {
	ID            string
	Tool          string
	ArgumentsJSON string
	Outcome       string // "ok" or "error"
	ErrorMessage  string
	DurationMS    int64
	StartedAt     time.Time
}

// InvocationFilter specifies filtering options for listing invocations.
type InvocationFilter struct {
	Tool  string // filter by tool name; empty matches all
	Since *time.Time
	Limit int // max results (default 100, max 1000)
}

// SQLiteStore persists invocation records to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invocations (
			invocation_id TEXT PRIMARY KEY,
			tool          TEXT NOT NULL,
			arguments_json TEXT,
			outcome       TEXT NOT NULL,
			error_message TEXT,
			duration_ms   INTEGER NOT NULL,
			started_at    TEXT NOT NULL,

			CHECK (outcome IN ('ok', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_tool
			ON invocations(tool);

		CREATE INDEX IF NOT EXISTS idx_invocations_started
			ON invocations(started_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// RecordInvocation persists one completed tool call. Implements
// registry.Recorder so the store can back an audited registry directly.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv *registry.Invocation) error {
	var argsJSON *string
	if inv.Arguments != nil {
		data, err := json.Marshal(inv.Arguments)
		if err != nil {
			return fmt.Errorf("marshaling arguments: %w", err)
		}
		str := string(data)
		argsJSON = &str
	}

	outcome := "ok"
	var errMsg *string
	if inv.Err != nil {
		outcome = "error"
		msg := inv.Err.Error()
		errMsg = &msg
	}

	query := `
		INSERT INTO invocations (invocation_id, tool, arguments_json, outcome, error_message, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		inv.Tool,
		argsJSON,
		outcome,
		errMsg,
		inv.Duration.Milliseconds(),
		inv.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("recorded invocation",
		"tool", inv.Tool,
		"outcome", outcome,
		"duration_ms", inv.Duration.Milliseconds(),
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const listInvocationsQuery = `
	SELECT invocation_id, tool, arguments_json, outcome, error_message, duration_ms, started_at
	FROM invocations
	WHERE (? = '' OR tool = ?)
	  AND (? IS NULL OR started_at >= ?)
	ORDER BY started_at DESC
	LIMIT ?
`

// ListInvocations returns invocation records matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListInvocations(ctx context.Context, f InvocationFilter) ([]InvocationRecord, error) {
	limit := normalizeLimit(f.Limit)

	var sinceStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}

	rows, err := s.db.QueryContext(ctx, listInvocationsQuery,
		f.Tool, f.Tool,
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		var argsJSON, errMsg *string
		var tsStr string
		if err := rows.Scan(&rec.ID, &rec.Tool, &argsJSON, &rec.Outcome, &errMsg, &rec.DurationMS, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning invocation: %w", err)
		}
		if argsJSON != nil {
			rec.ArgumentsJSON = *argsJSON
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		rec.StartedAt, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations: %w", err)
	}

	if records == nil {
		records = []InvocationRecord{}
	}
	return records, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
