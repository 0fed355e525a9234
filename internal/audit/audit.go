// Package audit logs completed gateway calls to a database/sql pool.
// This is an external record the front-end keeps on its own completed
// calls; it is not message durability - a crashed supervisor still loses
// every in-flight envelope.
package audit

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver via database/sql, registered as "pgx"
	_ "github.com/lib/pq"              // postgres driver, registered as "postgres"
	_ "github.com/mattn/go-sqlite3"    // sqlite3 driver, registered as "sqlite3"

	"github.com/fluxorio/procmesh/pkg/db"
)

// Sink records completed (method, ok, duration) rows.
type Sink struct {
	pool       *db.Pool
	driverName string
}

// Open creates the audit table (if absent) on a pool built from
// driverName/dsn and returns a Sink backed by it. driverName is one of
// "sqlite3", "postgres" (lib/pq), or "pgx" (jackc/pgx/v5 stdlib adapter).
func Open(driverName, dsn string) (*Sink, error) {
	cfg := db.DefaultPoolConfig(dsn, driverName)
	pool, err := db.NewPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("open audit pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := pool.Exec(ctx, createTableSQL(driverName)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	return &Sink{pool: pool, driverName: driverName}, nil
}

func createTableSQL(driverName string) string {
	if driverName == "sqlite3" {
		return `CREATE TABLE IF NOT EXISTS call_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			worker TEXT NOT NULL,
			method TEXT NOT NULL,
			ok INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`
	}
	return `CREATE TABLE IF NOT EXISTS call_audit (
		id SERIAL PRIMARY KEY,
		worker TEXT NOT NULL,
		method TEXT NOT NULL,
		ok BOOLEAN NOT NULL,
		duration_ms BIGINT NOT NULL,
		completed_at TIMESTAMP NOT NULL
	)`
}

// Record inserts one completed-call row. Failures are the caller's to
// handle (typically: log and move on - an audit-sink outage must never
// fail the call itself).
func (s *Sink) Record(ctx context.Context, worker, method string, ok bool, duration time.Duration) error {
	query := s.rebind("INSERT INTO call_audit (worker, method, ok, duration_ms, completed_at) VALUES (?, ?, ?, ?, ?)")
	_, err := s.pool.Exec(ctx, query, worker, method, ok, duration.Milliseconds(), time.Now())
	return err
}

// rebind rewrites "?" positional placeholders into lib/pq's "$1"..."$n"
// style when the sink was opened against the "postgres" driver; sqlite3
// and pgx's stdlib adapter both accept "?" as-is.
func (s *Sink) rebind(query string) string {
	if s.driverName != "postgres" {
		return query
	}
	n := 0
	out := make([]byte, 0, len(query)+8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, []byte(fmt.Sprintf("$%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Close releases the underlying connection pool.
func (s *Sink) Close() error { return s.pool.Close() }

// PoolHealth reports the audit pool's connectivity and connection
// occupancy, surfaced through the gateway's /healthz response and the
// pkg/observability/prometheus audit-pool gauges.
type PoolHealth struct {
	Reachable bool
	Error     string
	Open      int
	InUse     int
	Idle      int
}

// Health pings the audit pool and reports its connection stats. A failed
// ping never panics or propagates - an audit-sink outage must never take
// the gateway's health check down with it.
func (s *Sink) Health(ctx context.Context) PoolHealth {
	stats := s.pool.Stats()
	h := PoolHealth{Open: stats.OpenConnections, InUse: stats.InUse, Idle: stats.Idle}
	if err := s.pool.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Reachable = true
	return h
}
