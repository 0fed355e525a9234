package prometheus_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	promexport "github.com/fluxorio/procmesh/pkg/observability/prometheus"
)

// newTestMetrics builds a Metrics instance against a fresh registry, so
// tests never collide with the package's GetMetrics singleton or each
// other's counter values.
func newTestMetrics(t *testing.T) *promexport.Metrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	return promexport.NewMetrics(reg)
}

func TestRecordHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTPRequest("POST", "/call", "200", 10*time.Millisecond, 120, 64)
	m.RecordHTTPRequest("POST", "/call", "200", 5*time.Millisecond, 80, 32)

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/call", "200"))
	if got != 2 {
		t.Errorf("HTTPRequestsTotal = %v, want 2", got)
	}
}

func TestRecordSupervisorEvent(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordSupervisorEvent("worker_respawned")
	m.RecordSupervisorEvent("worker_respawned")
	m.RecordSupervisorEvent("worker_watchdog_timeout")

	if got := testutil.ToFloat64(m.SupervisorEventsTotal.WithLabelValues("worker_respawned")); got != 2 {
		t.Errorf("worker_respawned count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SupervisorEventsTotal.WithLabelValues("worker_watchdog_timeout")); got != 1 {
		t.Errorf("worker_watchdog_timeout count = %v, want 1", got)
	}
}

func TestUpdateWorkerCount(t *testing.T) {
	m := newTestMetrics(t)

	m.UpdateWorkerCount(3)
	if got := testutil.ToFloat64(m.WorkerCount); got != 3 {
		t.Errorf("WorkerCount = %v, want 3", got)
	}

	m.UpdateWorkerCount(1)
	if got := testutil.ToFloat64(m.WorkerCount); got != 1 {
		t.Errorf("WorkerCount = %v, want 1 after shrinking", got)
	}
}

func TestUpdateAuditPool(t *testing.T) {
	m := newTestMetrics(t)

	m.UpdateAuditPool(25, 20, 5)

	if got := testutil.ToFloat64(m.AuditPoolOpen); got != 25 {
		t.Errorf("AuditPoolOpen = %v, want 25", got)
	}
	if got := testutil.ToFloat64(m.AuditPoolIdle); got != 20 {
		t.Errorf("AuditPoolIdle = %v, want 20", got)
	}
	if got := testutil.ToFloat64(m.AuditPoolInUse); got != 5 {
		t.Errorf("AuditPoolInUse = %v, want 5", got)
	}
}

func TestRecordRateLimitRejected(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRateLimitRejected("alice")
	m.RecordRateLimitRejected("alice")
	m.RecordRateLimitRejected("bob")

	if got := testutil.ToFloat64(m.RateLimitRejectedTotal.WithLabelValues("alice")); got != 2 {
		t.Errorf("alice rejections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RateLimitRejectedTotal.WithLabelValues("bob")); got != 1 {
		t.Errorf("bob rejections = %v, want 1", got)
	}
}

func TestGetMetricsReturnsSingleton(t *testing.T) {
	a := promexport.GetMetrics()
	b := promexport.GetMetrics()
	if a != b {
		t.Error("GetMetrics() should return the same instance on every call")
	}
}
