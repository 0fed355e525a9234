package audit

import (
	"context"
	"testing"
	"time"
)

func TestSinkRecordsCompletedCalls(t *testing.T) {
	sink, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := sink.Record(ctx, "worker.A", "sync_call", true, 12*time.Millisecond); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := sink.Record(ctx, "worker.A", "sync_call", false, 3*time.Millisecond); err != nil {
		t.Fatalf("second Record() error = %v", err)
	}

	health := sink.Health(ctx)
	if !health.Reachable {
		t.Errorf("Health().Reachable = false, want true after successful inserts: %s", health.Error)
	}
}

func TestRebindForPostgresDriver(t *testing.T) {
	s := &Sink{driverName: "postgres"}
	got := s.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
}

func TestRebindLeavesSqliteUntouched(t *testing.T) {
	s := &Sink{driverName: "sqlite3"}
	query := "INSERT INTO t (a, b) VALUES (?, ?)"
	if got := s.rebind(query); got != query {
		t.Errorf("rebind() = %q, want unchanged %q", got, query)
	}
}
