package counter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teslashibe/go-proctor/pkg/proctor"
)

// SQLiteCounter keeps the count in a single-row table and the event history
// in an events table. SQLite serializes writers, so the counter is safe
// across processes sharing the database file.
type SQLiteCounter struct {
	db *sql.DB
}

// NewSQLiteCounter opens (or creates) the database at path.
func NewSQLiteCounter(path string) (*SQLiteCounter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	c := &SQLiteCounter{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCounter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS suspicion (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	INSERT OR IGNORE INTO suspicion (id, current, updated_at) VALUES (1, 0, CURRENT_TIMESTAMP);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		modality TEXT NOT NULL,
		type TEXT NOT NULL,
		verdict TEXT,
		artifact TEXT,
		count INTEGER NOT NULL,
		at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at DESC);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Increment adds one in a single statement and returns the new value.
func (c *SQLiteCounter) Increment(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
		UPDATE suspicion SET current = current + 1, updated_at = ?
		WHERE id = 1
		RETURNING current
	`, time.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return n, nil
}

// Read returns the current value.
func (c *SQLiteCounter) Read(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT current FROM suspicion WHERE id = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return n, nil
}

// Reset sets the value to zero.
func (c *SQLiteCounter) Reset(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `UPDATE suspicion SET current = 0, updated_at = ? WHERE id = 1`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reset counter: %w", err)
	}
	return nil
}

// Append records an event in the ledger.
func (c *SQLiteCounter) Append(ctx context.Context, ev proctor.Event) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO events (id, session_id, modality, type, verdict, artifact, count, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.SessionID, string(ev.Modality), string(ev.Type), string(ev.Verdict), ev.Artifact, ev.Count, ev.At.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (c *SQLiteCounter) Recent(ctx context.Context, limit int) ([]proctor.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, session_id, modality, type, verdict, artifact, count, at
		FROM events ORDER BY at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []proctor.Event
	for rows.Next() {
		var (
			ev                               proctor.Event
			modality, typ, verdict, artifact sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &modality, &typ, &verdict, &artifact, &ev.Count, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Modality = proctor.Modality(modality.String)
		ev.Type = proctor.EventType(typ.String)
		ev.Verdict = proctor.Verdict(verdict.String)
		ev.Artifact = artifact.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database.
func (c *SQLiteCounter) Close() error {
	return c.db.Close()
}

var (
	_ Counter = (*SQLiteCounter)(nil)
	_ Ledger  = (*SQLiteCounter)(nil)
)
