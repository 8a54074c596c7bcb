package journal

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite implements Recorder on a local SQLite file (modernc.org/sqlite,
// CGO-free). Use ":memory:" for an in-memory journal.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// short concurrent locks are common when the watcher and an operator
	// record at the same time
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	return &SQLite{db: db}, nil
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_transitions(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			pid INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_transitions_service ON service_transitions(service);`,
		`CREATE INDEX IF NOT EXISTS idx_service_transitions_occurred ON service_transitions(occurred_at);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Record(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_transitions(service, from_status, to_status, pid, detail, occurred_at)
		VALUES(?, ?, ?, ?, ?, ?);`,
		ev.Service, ev.FromStatus, ev.ToStatus, ev.PID, ev.Detail, ev.OccurredAt.UTC())
	return err
}

func (s *SQLite) EventsFor(ctx context.Context, service string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service, from_status, to_status, pid, detail, occurred_at
		FROM service_transitions
		WHERE service=?
		ORDER BY id DESC
		LIMIT ?;`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]Event, 0)
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Service, &ev.FromStatus, &ev.ToStatus, &ev.PID, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PurgeOlderThan removes events recorded before the cutoff and returns the
// number deleted.
func (s *SQLite) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM service_transitions WHERE occurred_at < ?;`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
