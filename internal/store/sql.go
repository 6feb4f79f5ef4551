// Package store persists report events in a SQL table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gustycube/pingscope/internal/emit"
	"github.com/gustycube/pingscope/internal/report"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSink writes events idempotently: a row is keyed by subject, label and
// start, and an open row takes the end of a later closed copy.
type SQLSink struct {
	db    *sql.DB
	table string
}

func NewSQLSink(db *sql.DB, table string) (*SQLSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLSink{db: db, table: table}, nil
}

// Open connects through the pgx driver and checks the connection.
func Open(ctx context.Context, dsn, table string) (*SQLSink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s, err := NewSQLSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) Name() string { return "sql" }

func (s *SQLSink) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLSink) Close() error { return s.db.Close() }

// EnsureSchema creates the events table when it does not exist.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+s.table+` (
	subject  TEXT        NOT NULL,
	label    TEXT        NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	end_at   TIMESTAMPTZ,
	run_id   TEXT        NOT NULL,
	PRIMARY KEY (subject, label, start_at)
)`)
	return err
}

// Publish upserts the batch in one statement.
func (s *SQLSink) Publish(ctx context.Context, b emit.Batch) error {
	events := latestPerRow(b.Events)
	if len(events) == 0 {
		return nil
	}

	var q strings.Builder
	q.WriteString("INSERT INTO ")
	q.WriteString(s.table)
	q.WriteString(" (subject, label, start_at, end_at, run_id) VALUES ")

	args := make([]any, 0, len(events)*5)
	for i, e := range events {
		if i > 0 {
			q.WriteString(",")
		}
		fmt.Fprintf(&q, "($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5)
		var end any
		if t, ok := e.End.Time(); ok {
			end = t.UTC()
		}
		args = append(args, e.Subject, string(e.Label), e.Start.UTC(), end, b.RunID)
	}
	q.WriteString(" ON CONFLICT (subject, label, start_at) DO UPDATE SET end_at = EXCLUDED.end_at, run_id = EXCLUDED.run_id WHERE ")
	q.WriteString(s.table)
	q.WriteString(".end_at IS NULL")

	_, err := s.db.ExecContext(ctx, q.String(), args...)
	return err
}

// latestPerRow keeps the last event for each row key; one INSERT may not
// touch the same row twice.
func latestPerRow(events []report.Event) []report.Event {
	type key struct {
		subject string
		label   report.Label
		start   time.Time
	}
	idx := make(map[key]int, len(events))
	out := make([]report.Event, 0, len(events))
	for _, e := range events {
		k := key{e.Subject, e.Label, e.Start.UTC()}
		if i, ok := idx[k]; ok {
			out[i] = e
			continue
		}
		idx[k] = len(out)
		out = append(out, e)
	}
	return out
}
