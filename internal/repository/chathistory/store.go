// Package chathistory persists chat sessions and exchanges in SQLite.
package chathistory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/papershelf/internal/domain"
	"github.com/kailas-cloud/papershelf/internal/domain/chat"
	"github.com/kailas-cloud/papershelf/internal/repository/chathistory/migrations"
)

// Store is a SQLite-backed chat history. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: chat database path is required", domain.ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL for concurrent readers; pragmas in the DSN apply to every pooled connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck // passthrough
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping chat database: %w", err)
	}
	return nil
}

// migrate runs all pending *.up.sql files in version order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(version int, stmt string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(stmt); err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit() //nolint:wrapcheck // wrapped by caller
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess chat.Session) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		sess.ID, sess.Title, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert session: %w", domain.ErrStorage, err)
	}
	return nil
}

const sessionColumns = `
	s.id, s.title, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM chat_history h WHERE h.session_id = s.id)`

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]chat.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+sessionColumns+" FROM sessions s ORDER BY s.created_at DESC, s.rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	sessions := []chat.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sessions: %w", domain.ErrStorage, err)
	}
	return sessions, nil
}

// GetSession returns one session or domain.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT"+sessionColumns+" FROM sessions s WHERE s.id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (chat.Session, error) {
	var (
		sess             chat.Session
		created, updated int64
	)
	if err := sc.Scan(&sess.ID, &sess.Title, &created, &updated, &sess.QueryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Session{}, err //nolint:wrapcheck // sentinel checked by caller
		}
		return chat.Session{}, fmt.Errorf("%w: scan session: %w", domain.ErrStorage, err)
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	return sess, nil
}

// AppendEntry records an exchange and touches the session's updated_at.
// It returns domain.ErrNotFound when the session does not exist.
func (s *Store) AppendEntry(ctx context.Context, e chat.Entry) (int64, error) {
	sources := e.Sources
	if sources == nil {
		sources = []chat.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return 0, fmt.Errorf("marshal sources: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", domain.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := e.CreatedAt.UnixNano()
	res, err := tx.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?", ts, e.SessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: touch session: %w", domain.ErrStorage, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, fmt.Errorf("%w: session %s", domain.ErrNotFound, e.SessionID)
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO chat_history (session_id, query, answer, sources, created_at) VALUES (?, ?, ?, ?, ?)",
		e.SessionID, e.Query, e.Answer, string(sourcesJSON), ts,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert entry: %w", domain.ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: entry id: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", domain.ErrStorage, err)
	}
	return id, nil
}

// History returns the entries of a session in the order they were recorded.
func (s *Store) History(ctx context.Context, sessionID string) ([]chat.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, query, answer, sources, created_at
		 FROM chat_history WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	entries := []chat.Entry{}
	for rows.Next() {
		var (
			e           chat.Entry
			sourcesJSON string
			created     int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Query, &e.Answer, &sourcesJSON, &created); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", domain.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &e.Sources); err != nil {
			return nil, fmt.Errorf("%w: decode sources of entry %d: %w", domain.ErrStorage, e.ID, err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate history: %w", domain.ErrStorage, err)
	}
	return entries, nil
}
