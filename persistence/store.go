// Package persistence implements the optional StatePersistence collaborator:
// save/load/delete/list over opaque session bytes, backed by database/sql
// with a pluggable dialect. The core treats session bytes as opaque and
// never calls this collaborator automatically; it exists purely so a
// caller (typically cmd/reasoncore-demo or a longer-lived host process)
// can resume a reasoning.Session across process restarts.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQL drivers, selected by dialect at Open time.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Error reports a persistence-layer failure.
type Error struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(action, message string, err error) *Error {
	return &Error{Component: "persistence", Action: action, Message: message, Err: err}
}

// StatePersistence is the optional collaborator the reasoning core can be
// handed to persist session bytes across restarts. The core never calls
// it automatically; it is wired in by whatever host process owns the
// reasoning.Loop.
type StatePersistence interface {
	Save(ctx context.Context, sessionID string, data []byte) error
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// ErrNotFound is returned by Load when no row exists for the session ID.
var ErrNotFound = fmt.Errorf("persistence: session not found")

const createSessionStateSchemaSQL = `
CREATE TABLE IF NOT EXISTS session_state (
    session_id VARCHAR(255) PRIMARY KEY,
    data BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// SQLStore implements StatePersistence over database/sql, switching query
// dialect (sqlite, postgres, mysql) at construction time.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// Open opens (or reuses) a *sql.DB for driverName/dsn and wraps it as a
// StatePersistence with the matching query dialect. driverName is one of
// "sqlite3", "postgres", or "mysql".
func Open(driverName, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, newError("Open", "failed to open database", err)
	}
	return NewSQLStore(db, driverName)
}

// NewSQLStore wraps an already-open *sql.DB as a StatePersistence. dialect
// is normalized from the driver name the caller used to open db
// ("sqlite3" collapses to "sqlite"); sqlite is the default when dialect is
// empty, matching the sqlite-by-default promise for this collaborator.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, newError("NewSQLStore", "database connection is required", nil)
	}

	switch dialect {
	case "", "sqlite3":
		dialect = "sqlite"
	case "sqlite", "postgres", "mysql":
		// already normalized
	default:
		return nil, newError("NewSQLStore", fmt.Sprintf("unsupported dialect: %s (supported: sqlite, postgres, mysql)", dialect), nil)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, newError("NewSQLStore", "failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Executed as its own statement, not chained, for sqlite compatibility.
	_, err := s.db.ExecContext(ctx, createSessionStateSchemaSQL)
	return err
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, sessionID string, data []byte) error {
	if sessionID == "" {
		return newError("Save", "session_id must not be empty", nil)
	}

	query, args := s.upsertQuery(sessionID, data, time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return newError("Save", "failed to save session state", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	query := s.placeholders("SELECT data FROM session_state WHERE session_id = ?")

	var data []byte
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, newError("Load", "failed to load session state", err)
	}
	return data, nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	query := s.placeholders("DELETE FROM session_state WHERE session_id = ?")
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return newError("Delete", "failed to delete session state", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT session_id FROM session_state ORDER BY updated_at DESC")
	if err != nil {
		return nil, newError("List", "failed to list sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, newError("List", "failed to scan session id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("List", "failed to iterate sessions", err)
	}
	return ids, nil
}

// upsertQuery builds the dialect-specific save statement and its args.
func (s *SQLStore) upsertQuery(sessionID string, data []byte, now time.Time) (string, []interface{}) {
	switch s.dialect {
	case "postgres":
		return `INSERT INTO session_state (session_id, data, updated_at)
                VALUES ($1, $2, $3)
                ON CONFLICT (session_id) DO UPDATE SET data = $2, updated_at = $3`,
			[]interface{}{sessionID, data, now}
	case "mysql":
		return `INSERT INTO session_state (session_id, data, updated_at)
                VALUES (?, ?, ?)
                ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`,
			[]interface{}{sessionID, data, now}
	default: // sqlite
		return `INSERT INTO session_state (session_id, data, updated_at)
                VALUES (?, ?, ?)
                ON CONFLICT (session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			[]interface{}{sessionID, data, now}
	}
}

// placeholders rewrites a query written with "?" placeholders into the
// target dialect's native placeholder syntax.
func (s *SQLStore) placeholders(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

var _ StatePersistence = (*SQLStore)(nil)
