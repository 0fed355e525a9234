package core

import (
	"context"
	"testing"
	"time"

	"github.com/fluxorio/procmesh/pkg/corelog"
)

// idleWorker registers no methods and never sends anything, so its only
// source of liveness is envelopes the test chooses to route to it.
type idleWorker struct {
	stopped chan struct{}
}

func (w *idleWorker) Register(ep *Endpoint) {}
func (w *idleWorker) BeforeStart(ctx context.Context) error { return nil }
func (w *idleWorker) OnStop() {
	if w.stopped != nil {
		close(w.stopped)
	}
}

func startIdleWorker(t *testing.T, checkTimeout time.Duration, onHit func(string)) (done, stopped chan struct{}, cancel context.CancelFunc) {
	t.Helper()
	logger := corelog.NewDefault()
	router := NewRouter(16, logger, false)
	mb := NewMailbox(16)
	ep := newEndpoint("worker.idle", mb, router, logger, false)
	router.Register("worker.idle", mb)

	ctx, cancelFn := context.WithCancel(context.Background())
	t.Cleanup(cancelFn)

	stopped = make(chan struct{})
	done = make(chan struct{})
	go func() {
		defer close(done)
		runWorker(ctx, ep, &idleWorker{stopped: stopped}, checkTimeout, logger, onHit)
	}()
	return done, stopped, cancelFn
}

func TestWorkerWatchdogSelfStopsWhenSilent(t *testing.T) {
	hit := make(chan string, 1)
	done, stopped, _ := startIdleWorker(t, 200*time.Millisecond, func(detail string) {
		select {
		case hit <- detail:
		default:
		}
	})

	// Grace period is one checkTimeout, then the liveness check runs once
	// per second; the first check after ~1.2s must trip.
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("silent worker did not self-stop within the bounded time")
	}

	select {
	case <-hit:
	case <-time.After(time.Second):
		t.Error("watchdog-timeout callback never fired")
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("OnStop was not called on watchdog self-stop")
	}
}

func TestWorkerStopsOnContextCancelWithoutWatchdogHit(t *testing.T) {
	hit := make(chan string, 1)
	done, stopped, cancel := startIdleWorker(t, time.Hour, func(detail string) {
		select {
		case hit <- detail:
		default:
		}
	})

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Error("OnStop was not called on graceful stop")
	}

	select {
	case d := <-hit:
		t.Errorf("watchdog fired on a graceful stop: %s", d)
	default:
	}
}

type failingStartWorker struct{}

func (w *failingStartWorker) Register(ep *Endpoint) {}
func (w *failingStartWorker) BeforeStart(ctx context.Context) error { return context.Canceled }
func (w *failingStartWorker) OnStop() {}

func TestWorkerBeforeStartFailureExitsLoop(t *testing.T) {
	logger := corelog.NewDefault()
	router := NewRouter(16, logger, false)
	mb := NewMailbox(16)
	ep := newEndpoint("worker.badstart", mb, router, logger, false)
	router.Register("worker.badstart", mb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWorker(ctx, ep, &failingStartWorker{}, time.Hour, logger, nil)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runWorker did not return after before_start failed")
	}
}
