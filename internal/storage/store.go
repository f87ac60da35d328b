// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides SQLite-backed chat session persistence.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session id is absent from the store.
var ErrSessionNotFound = errors.New("session not found")

// StoreError wraps an underlying storage failure. Callers must not assume
// partial writes are visible: every mutating operation is a single
// transaction.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// =============================================================================
// TYPES
// =============================================================================

// StoredMessage is one persisted message row.
type StoredMessage struct {
	Content   string
	IsUser    bool
	Timestamp time.Time
}

// SessionMeta is a listing entry: newest-updated sessions sort first.
type SessionMeta struct {
	ID        int64
	Title     string
	UpdatedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Schema is created idempotently on open; there is no migration system.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER,
	content TEXT,
	is_user BOOLEAN,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (session_id) REFERENCES sessions (id)
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
`

// Store persists chat sessions in a SQLite database. Single-process,
// single-writer: the file is opened once and never locked for multi-
// process access.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, storeErr("open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent reads from the UI.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storeErr("pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storeErr("init schema", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// SAVE
// =============================================================================

// Save creates a new session row and one message row per message,
// preserving order, in a single transaction. Returns the generated
// session id. On failure nothing is visible.
func (s *Store) Save(title string, messages []StoredMessage) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, storeErr("save", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO sessions (title) VALUES (?)`, title)
	if err != nil {
		return 0, storeErr("save session", err)
	}
	sessionID, err := result.LastInsertId()
	if err != nil {
		return 0, storeErr("save session", err)
	}

	for _, msg := range messages {
		_, err := tx.Exec(
			`INSERT INTO messages (session_id, content, is_user) VALUES (?, ?, ?)`,
			sessionID, msg.Content, msg.IsUser,
		)
		if err != nil {
			return 0, storeErr("save message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("save commit", err)
	}
	return sessionID, nil
}

// Touch refreshes a session's updated_at timestamp.
func (s *Store) Touch(sessionID int64) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sessionID)
	if err != nil {
		return storeErr("touch", err)
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load retrieves a session's title and messages in insertion order.
// Returns ErrSessionNotFound if the id is absent.
//
// Messages are deduplicated by exact content, first-seen order preserved.
// This collapses genuinely identical consecutive messages too (a user
// sending "ok" twice); kept as documented behavior for round-trip
// compatibility with stores written by earlier versions.
func (s *Store) Load(sessionID int64) (string, []StoredMessage, error) {
	var title string
	err := s.db.QueryRow(`SELECT title FROM sessions WHERE id = ?`, sessionID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("load session %d: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return "", nil, storeErr("load", err)
	}

	rows, err := s.db.Query(
		`SELECT content, is_user, timestamp FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return "", nil, storeErr("load messages", err)
	}
	defer rows.Close()

	var messages []StoredMessage
	seen := make(map[string]bool)
	for rows.Next() {
		var msg StoredMessage
		if err := rows.Scan(&msg.Content, &msg.IsUser, &msg.Timestamp); err != nil {
			return "", nil, storeErr("scan message", err)
		}
		if seen[msg.Content] {
			continue
		}
		seen[msg.Content] = true
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return "", nil, storeErr("load messages", err)
	}

	return title, messages, nil
}

// =============================================================================
// LIST / SEARCH
// =============================================================================

// List returns all sessions, newest-updated first.
func (s *Store) List() ([]SessionMeta, error) {
	rows, err := s.db.Query(
		`SELECT id, title, updated_at FROM sessions ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()
	return scanMetas(rows)
}

// Search returns the sessions whose title or any message content contains
// the query, case-insensitively, newest-updated first.
func (s *Store) Search(query string) ([]SessionMeta, error) {
	// LIKE is case-insensitive for ASCII in SQLite by default.
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT DISTINCT s.id, s.title, s.updated_at
		FROM sessions s
		LEFT JOIN messages m ON s.id = m.session_id
		WHERE s.title LIKE ? OR m.content LIKE ?
		ORDER BY s.updated_at DESC, s.id DESC
	`, pattern, pattern)
	if err != nil {
		return nil, storeErr("search", err)
	}
	defer rows.Close()
	return scanMetas(rows)
}

func scanMetas(rows *sql.Rows) ([]SessionMeta, error) {
	var metas []SessionMeta
	for rows.Next() {
		var meta SessionMeta
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.UpdatedAt); err != nil {
			return nil, storeErr("scan session", err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("scan sessions", err)
	}
	return metas, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a session and all its messages. Idempotent: deleting an
// absent id is not an error.
func (s *Store) Delete(sessionID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeErr("delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return storeErr("delete messages", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return storeErr("delete session", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("delete commit", err)
	}
	return nil
}

// ClearAll removes every session and message.
func (s *Store) ClearAll() error {
	tx, err := s.db.Begin()
	if err != nil {
		return storeErr("clear", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return storeErr("clear messages", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return storeErr("clear sessions", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("clear commit", err)
	}
	return nil
}
