package core

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/procmesh/pkg/corelog"
	"github.com/fluxorio/procmesh/pkg/reactor"
)

// Worker is the user-supplied class of methods a spawned child hosts.
// Register is called once, before the loop starts, so the worker can
// claim its callable methods and message handler against ep.
// BeforeStart and OnStop bracket the worker's event loop.
type Worker interface {
	Register(ep *Endpoint)
	BeforeStart(ctx context.Context) error
	OnStop()
}

// WorkerFactory constructs a fresh Worker instance. The supervisor calls
// it once per spawn (including every respawn), so no state survives from
// one incarnation to the next unless the factory closure captures it on
// purpose.
type WorkerFactory func() Worker

// runWorker is a spawned worker's entry point: it owns a private
// reactor-driven event loop, installs the watchdog, runs until ctx is
// cancelled, the mailbox pump exits, or the watchdog decides to
// self-terminate, and then tears down.
func runWorker(ctx context.Context, ep *Endpoint, w Worker, watchdogCheckTimeout time.Duration, logger corelog.Logger, onWatchdogTimeout func(detail string)) {
	rct := reactor.NewReactor(reactor.ReactorOptions{MailboxSize: 1024})
	rct.Start()
	defer func() { _ = rct.Stop(context.Background()) }()

	w.Register(ep)

	if err := w.BeforeStart(ctx); err != nil {
		logger.Errorf("%s: before_start failed: %v", ep.Name(), err)
		return
	}
	defer w.OnStop()
	defer ep.failAllPending(NewError(KindTransportFull, "endpoint %s torn down", ep.Name()))

	ep.touchLiveness()

	watchdogDone := make(chan struct{})
	selfStop := make(chan struct{})
	defer close(watchdogDone)
	go runWatchdog(ep, watchdogCheckTimeout, selfStop, watchdogDone)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		ep.Run(ctx, rct)
	}()

	select {
	case <-ctx.Done():
	case <-pumpDone:
	case <-selfStop:
		detail := fmt.Sprintf("silent for %s", ep.SilentFor())
		logger.Warnf("%s: watchdog timeout (%s), self-stopping", ep.Name(), detail)
		if onWatchdogTimeout != nil {
			onWatchdogTimeout(detail)
		}
	}
}

// runWatchdog is the worker-side liveness check: after an initial
// watchdogCheckTimeout grace period, it compares the time since the last
// inbound envelope against watchdogCheckTimeout once per second,
// signalling selfStop the first time it is exceeded.
func runWatchdog(ep *Endpoint, watchdogCheckTimeout time.Duration, selfStop chan<- struct{}, done <-chan struct{}) {
	grace := time.NewTimer(watchdogCheckTimeout)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if ep.SilentFor() > watchdogCheckTimeout {
				select {
				case selfStop <- struct{}{}:
				default:
				}
				return
			}
		}
	}
}
