package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gustycube/pingscope/internal/emit"
	"github.com/gustycube/pingscope/internal/report"
	"github.com/gustycube/pingscope/internal/types"
)

var start = time.Date(2020, 10, 19, 13, 31, 25, 0, time.UTC)

func TestSQLSinkPublish(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, err := NewSQLSink(db, "ping_events")
	if err != nil {
		t.Fatal(err)
	}
	end := start.Add(5 * time.Second)
	batch := emit.Batch{RunID: "run-1", Events: []report.Event{
		{Start: start, End: types.At(end), Subject: "10.20.30.1/16", Label: report.LabelDowntime},
		{Start: start.Add(time.Second), End: types.Open(), Subject: "10.20.0.0/16", Label: report.LabelSwitchDown},
	}}

	expectedQuery := regexp.QuoteMeta("INSERT INTO ping_events (subject, label, start_at, end_at, run_id) VALUES ($1,$2,$3,$4,$5),($6,$7,$8,$9,$10) ON CONFLICT (subject, label, start_at) DO UPDATE SET end_at = EXCLUDED.end_at, run_id = EXCLUDED.run_id WHERE ping_events.end_at IS NULL")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"10.20.30.1/16", "downtime", start, end, "run-1",
			"10.20.0.0/16", "switch down", start.Add(time.Second), nil, "run-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := sink.Publish(context.Background(), batch); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkPublish_CollapsesSameRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewSQLSink(db, "ping_events")
	end := start.Add(time.Minute)
	batch := emit.Batch{RunID: "run-2", Events: []report.Event{
		{Start: start, End: types.Open(), Subject: "10.20.30.1/16", Label: report.LabelDowntime},
		{Start: start, End: types.At(end), Subject: "10.20.30.1/16", Label: report.LabelDowntime},
	}}

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1,$2,$3,$4,$5) ON CONFLICT")).
		WithArgs("10.20.30.1/16", "downtime", start, end, "run-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := sink.Publish(context.Background(), batch); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkPublish_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewSQLSink(db, "ping_events")
	if err := sink.Publish(context.Background(), emit.Batch{}); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSinkEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink, _ := NewSQLSink(db, "monitoring.ping_events")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS monitoring.ping_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := sink.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewSQLSink_RejectsBadTableName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	for _, name := range []string{"", "events; DROP TABLE x", "1events", "a.b.c"} {
		if _, err := NewSQLSink(db, name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	sink, err := NewSQLSink(db, "ping_events")
	if err != nil {
		t.Fatal(err)
	}
	if sink.Name() != "sql" {
		t.Fatalf("expected sink name sql, got %s", sink.Name())
	}
}

func TestSQLSink_CloseClosesDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	sink, err := NewSQLSink(db, "ping_events")
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectClose()

	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
