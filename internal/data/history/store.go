// Package history keeps a sqlite log of the update events a dev session
// published.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/shared/observability"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

var _ ports.HistoryStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, 2*time.Second)
}

func OpenWithTimeout(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts while a session writes and
	// `vinec history` reads.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveEvent stores one event. Events without an id get a fresh one; saving
// an id twice replaces the earlier row.
func (s *Store) SaveEvent(event ports.UpdateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(event.ID) == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	affected, err := encodeList(event.Affected)
	if err != nil {
		return err
	}
	modules, err := encodeList(event.Modules)
	if err != nil {
		return err
	}
	diags, err := encodeList(event.Diagnostics)
	if err != nil {
		return err
	}

	query := `
INSERT INTO hmr_events (
  id, session_id, ts_utc, file_id, kind, component, scope_id, reason,
  affected_json, modules_json, diagnostics_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  session_id=excluded.session_id,
  ts_utc=excluded.ts_utc,
  file_id=excluded.file_id,
  kind=excluded.kind,
  component=excluded.component,
  scope_id=excluded.scope_id,
  reason=excluded.reason,
  affected_json=excluded.affected_json,
  modules_json=excluded.modules_json,
  diagnostics_json=excluded.diagnostics_json
`
	err = s.withRetry("save event", func() error {
		_, err := s.db.Exec(
			query,
			event.ID,
			event.SessionID,
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			event.FileID,
			event.Kind,
			event.Component,
			event.ScopeID,
			event.Reason,
			affected,
			modules,
			diags,
		)
		return err
	})
	if err != nil {
		observability.HistoryWriteErrors.Inc()
	}
	return err
}

// LoadEvents returns events at or after since, oldest first. limit <= 0
// returns all of them; otherwise the newest limit events are kept.
func (s *Store) LoadEvents(since time.Time, limit int) ([]ports.UpdateEvent, error) {
	return s.load(Filter{Since: since, Limit: limit})
}

// Filter narrows LoadFiltered.
type Filter struct {
	Since     time.Time
	FileID    string
	SessionID string
	Kind      string
	Limit     int
}

func (s *Store) LoadFiltered(f Filter) ([]ports.UpdateEvent, error) {
	return s.load(f)
}

func (s *Store) load(f Filter) ([]ports.UpdateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "ts_utc >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if f.FileID != "" {
		where = append(where, "file_id = ?")
		args = append(args, f.FileID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	inner := `
SELECT id, session_id, ts_utc, file_id, kind, component, scope_id, reason,
  affected_json, modules_json, diagnostics_json
FROM hmr_events`
	if len(where) > 0 {
		inner += " WHERE " + strings.Join(where, " AND ")
	}
	inner += " ORDER BY ts_utc DESC, id DESC"
	if f.Limit > 0 {
		inner += " LIMIT ?"
		args = append(args, f.Limit)
	}
	query := "SELECT * FROM (" + inner + ") ORDER BY ts_utc ASC, id ASC"

	var rows *sql.Rows
	err := s.withRetry("load events", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]ports.UpdateEvent, 0)
	for rows.Next() {
		var (
			tsRaw                    string
			affected, modules, diags string
			event                    ports.UpdateEvent
		)
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&tsRaw,
			&event.FileID,
			&event.Kind,
			&event.Component,
			&event.ScopeID,
			&event.Reason,
			&affected,
			&modules,
			&diags,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", tsRaw, err)
		}
		event.Timestamp = ts.UTC()
		if event.Affected, err = decodeList(affected); err != nil {
			return nil, err
		}
		if event.Modules, err = decodeList(modules); err != nil {
			return nil, err
		}
		if event.Diagnostics, err = decodeList(diags); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// Prune deletes events older than before and reports how many went.
func (s *Store) Prune(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	err := s.withRetry("prune events", func() error {
		res, err := s.db.Exec(`DELETE FROM hmr_events WHERE ts_utc < ?`, before.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", raw, err)
	}
	return out, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
