// Package history keeps a local SQLite log of clone and publish outcomes so
// an operator can see what was sent to the remote and what failed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Operations recorded in the log.
const (
	OpClone   = "clone"
	OpPublish = "publish"
	OpPull    = "pull"
	OpPush    = "push"
)

const dbFile = "history.db"

// SchemaVersion is the version the migrations bring a database to.
const SchemaVersion = 1

const schemaInfo = `CREATE TABLE IF NOT EXISTS schema_info (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	`CREATE TABLE sync_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		op         TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		path       TEXT NOT NULL DEFAULT '',
		result     TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		adds       INTEGER NOT NULL DEFAULT 0,
		deletes    INTEGER NOT NULL DEFAULT 0,
		edits      INTEGER NOT NULL DEFAULT 0,
		session_id TEXT NOT NULL DEFAULT '',
		timestamp  TEXT NOT NULL
	);
	CREATE INDEX idx_sync_history_session ON sync_history(session_id);`,
}

// Entry is one row of the sync_history table.
type Entry struct {
	ID        int64
	Op        string
	Source    string
	Path      string
	Result    string // "success", "no_changes" or an error kind
	Message   string
	Adds      int
	Deletes   int
	Edits     int
	SessionID string
	Timestamp time.Time
}

// Store wraps the history database.
type Store struct {
	conn *sql.DB
}

// DefaultPath returns the database location inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, dbFile)
}

// Open opens (creating if needed) the database at path and runs pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// Enable WAL mode so the TUI and a CLI invocation can share the log
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s, err := New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection, running pending migrations.
func New(conn *sql.DB) (*Store, error) {
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version() (int, error) {
	var v string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (s *Store) migrate() error {
	if _, err := s.conn.Exec(schemaInfo); err != nil {
		return err
	}
	version, err := s.Version()
	if err != nil {
		return err
	}

	for v := version; v < len(migrations); v++ {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_info (key, value) VALUES ('version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(v+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Record appends e and returns its id. A zero Timestamp is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO sync_history (op, source, path, result, message, adds, deletes, edits, session_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Op, e.Source, e.Path, e.Result, e.Message, e.Adds, e.Deletes, e.Edits, e.SessionID,
		e.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("record history: %w", err)
	}
	return res.LastInsertId()
}

// Tail returns the last limit entries in chronological order (oldest first).
func (s *Store) Tail(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, op, source, path, result, message, adds, deletes, edits, session_id, timestamp
		FROM sync_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.Op, &e.Source, &e.Path, &e.Result, &e.Message,
			&e.Adds, &e.Deletes, &e.Edits, &e.SessionID, &ts); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.ID, err)
		}
		e.Timestamp = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Prune deletes all but the newest maxRows entries and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, maxRows int) (int64, error) {
	if maxRows < 0 {
		maxRows = 0
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM sync_history
		WHERE id NOT IN (SELECT id FROM sync_history ORDER BY id DESC LIMIT ?)
	`, maxRows)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// NewSessionID returns an identifier grouping the entries of one editing
// session.
func NewSessionID() string {
	return uuid.NewString()
}
