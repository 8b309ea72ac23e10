// Package libsql provides a durable SessionStore backed by a libSQL/Turso
// database. Sessions are stored as JSON documents keyed by id, so the
// persisted record shape round-trips without loss.
package libsql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/hupe1980/qamesh/core"
)

const schema = `CREATE TABLE IF NOT EXISTS qa_sessions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created TEXT NOT NULL,
	data TEXT NOT NULL
)`

// Store is a SQL-backed SessionStore.
type Store struct {
	db *sql.DB
}

// Open connects to the database at url (a file: path or a Turso URL with
// authToken) and ensures the schema exists.
func Open(url string) (*Store, error) {
	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("opening libsql database: %w", err)
	}

	// Turso aggressively closes idle streams; keep the pool small and fresh.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle and ensures the schema exists.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create persists a newly created session record.
func (s *Store) Create(sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO qa_sessions (id, status, created, data) VALUES (?, ?, ?, ?)`,
		sess.ID, string(sess.CurrentStatus()), sess.Created.Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

// Get returns the stored session or core.ErrSessionNotFound.
func (s *Store) Get(id string) (*core.Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM qa_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	var sess core.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// Finalize persists the terminal snapshot of a session.
func (s *Store) Finalize(sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.ID, err)
	}
	res, err := s.db.Exec(
		`UPDATE qa_sessions SET status = ?, data = ? WHERE id = ?`,
		string(sess.CurrentStatus()), string(data), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}
