// Package store keeps the blacklist and the login audit log in a SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrEmptyID    = errors.New("store: empty id")
	ErrNotBlocked = errors.New("store: id is not blacklisted")
	ErrClosed     = errors.New("store: closed")
)

const schema = `
CREATE TABLE IF NOT EXISTS blacklist (
	id         TEXT PRIMARY KEY,
	reason     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS login_audit (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	portal     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	msg        TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS login_audit_id ON login_audit(id);
`

// Entry is one blacklisted id.
type Entry struct {
	ID      string    `json:"id"`
	Reason  string    `json:"reason"`
	Created time.Time `json:"created"`
}

// LoginRecord is one row of the login audit log. Outcome is "success" or a
// failure type.
type LoginRecord struct {
	ID      string    `json:"id"`
	Portal  string    `json:"portal"`
	Outcome string    `json:"outcome"`
	Msg     string    `json:"msg,omitempty"`
	Time    time.Time `json:"time"`
}

// Store is a SQLite backed record store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	// now is replaced in tests.
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open record store: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot apply record store schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func normID(id string) string {
	return strings.TrimSpace(id)
}

// Block adds id to the blacklist, replacing the reason of an existing entry.
func (s *Store) Block(ctx context.Context, id, reason string) error {
	id = normID(id)
	if id == "" {
		return ErrEmptyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO blacklist (id, reason, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET reason = excluded.reason
	`, id, reason, s.now().Unix())
	if err != nil {
		return fmt.Errorf("error: failed to blacklist %s: %w", id, err)
	}
	return nil
}

// Unblock removes id from the blacklist. It returns ErrNotBlocked when id was
// not listed.
func (s *Store) Unblock(ctx context.Context, id string) error {
	id = normID(id)
	if id == "" {
		return ErrEmptyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM blacklist WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error: failed to unblock %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotBlocked
	}
	return nil
}

// IsBlocked reports whether id is blacklisted.
func (s *Store) IsBlocked(ctx context.Context, id string) (bool, error) {
	id = normID(id)
	if id == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var one int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("error: failed to query blacklist: %w", err)
	}
	return true, nil
}

// Blacklist returns every blacklisted id ordered by id.
func (s *Store) Blacklist(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, reason, created_at FROM blacklist ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query blacklist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Reason, &created); err != nil {
			return nil, fmt.Errorf("error: failed to scan blacklist row: %w", err)
		}
		e.Created = time.Unix(created, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate blacklist rows: %w", err)
	}
	return entries, nil
}

// RecordLogin appends an attempt to the audit log. Time defaults to now.
func (s *Store) RecordLogin(ctx context.Context, r LoginRecord) error {
	if normID(r.ID) == "" {
		return ErrEmptyID
	}
	if r.Time.IsZero() {
		r.Time = s.now()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO login_audit (id, portal, outcome, msg, created_at) VALUES (?, ?, ?, ?, ?)
	`, normID(r.ID), r.Portal, r.Outcome, r.Msg, r.Time.Unix())
	if err != nil {
		return fmt.Errorf("error: failed to record login: %w", err)
	}
	return nil
}

// RecentLogins returns up to limit audit rows, newest first. An empty id
// returns rows for every user.
func (s *Store) RecentLogins(ctx context.Context, id string, limit int) ([]LoginRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	id = normID(id)
	rows, err := db.QueryContext(ctx, `
		SELECT id, portal, outcome, msg, created_at
		FROM login_audit
		WHERE (? = '' OR id = ?)
		ORDER BY seq DESC
		LIMIT ?
	`, id, id, limit)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query login audit: %w", err)
	}
	defer rows.Close()

	var out []LoginRecord
	for rows.Next() {
		var (
			r       LoginRecord
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Portal, &r.Outcome, &r.Msg, &created); err != nil {
			return nil, fmt.Errorf("error: failed to scan login audit row: %w", err)
		}
		r.Time = time.Unix(created, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate login audit rows: %w", err)
	}
	return out, nil
}
