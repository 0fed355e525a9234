package core

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fluxorio/procmesh/pkg/config"
	"github.com/fluxorio/procmesh/pkg/corelog"
	"github.com/fluxorio/procmesh/pkg/reactor"
)

// State is one of the supervisor's lifecycle states.
type State int

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// App is the front-end application the supervisor starts after spawning
// its workers - user-supplied, known to the core only through this
// interface. Listen must return promptly (spawning its own listener
// goroutine); Close stops it.
type App interface {
	Listen(ctx context.Context, svc *Service, host string, port int) error
	Close() error
}

type workerRecord struct {
	factory   WorkerFactory
	cancel    context.CancelFunc
	done      chan struct{}
	lastSpawn time.Time

	// standDown is set by Spawn, before it cancels this record, when it is
	// about to replace it with a fresh one under the same name. The old
	// record's watchExit goroutine checks it after <-done fires so it never
	// races the replacement's own registration: without this, the old
	// watchExit could read s.workers[name] before Spawn finishes writing the
	// new record, see itself as still current, and Unregister the name out
	// from under the worker that just replaced it.
	standDown int32
}

// Service is the supervisor: it forks (spawns) workers, registers them by
// name, wires their mailboxes into the router, handles signals, sends
// periodic pings, and respawns on exit. It is itself an Endpoint,
// addressable under its own FQCN so workers can remote-call it back.
type Service struct {
	*Endpoint

	cfg    *config.Provider
	logger corelog.Logger
	router *Router

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	workers map[string]*workerRecord

	selfReactor *reactor.Reactor
	pingStop    func()

	events *eventBroadcaster

	beforeStart func(ctx context.Context) error
}

// SetBeforeStart installs a hook run once at the top of Start, before any
// worker is spawned - the supervisor-side counterpart to Worker's
// BeforeStart, letting a front-end wire up state the workers or the App
// will depend on. A nil or unset hook is a no-op.
func (s *Service) SetBeforeStart(fn func(ctx context.Context) error) {
	s.beforeStart = fn
}

// NewService constructs a supervisor from a config provider and logger.
func NewService(cfg *config.Provider, logger corelog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	router := NewRouter(1024, logger, cfg.Debug())

	name := NameOf((*Service)(nil))
	mailbox := NewMailbox(cfg.MailboxCapacity())
	ep := newEndpoint(name, mailbox, router, logger, cfg.Debug())
	router.Register(name, mailbox)

	return &Service{
		Endpoint: ep,
		cfg:      cfg,
		logger:   logger,
		router:   router,
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[string]*workerRecord),
		state:    StateInit,
		events:   newEventBroadcaster(),
	}
}

// State reports the supervisor's current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WorkerCount reports how many workers are currently registered, for a
// front-end application's metrics/health surface.
func (s *Service) WorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Start runs the supervisor's startup sequence and then blocks until
// Stop is called (directly, or via SIGINT/SIGTERM). app may be nil when
// no front-end application is wired up (e.g. in tests).
func (s *Service) Start(app App, workers map[string]WorkerFactory) error {
	s.mu.Lock()
	if s.state != StateInit {
		s.mu.Unlock()
		return NewError(KindCalleeError, "service already started")
	}
	s.state = StateRunning
	s.mu.Unlock()

	if s.beforeStart != nil {
		if err := s.beforeStart(s.ctx); err != nil {
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			return NewError(KindCalleeError, "supervisor before_start failed: %v", err)
		}
	}

	go s.router.Run(s.ctx)

	s.selfReactor = reactor.NewReactor(reactor.ReactorOptions{MailboxSize: 1024})
	s.selfReactor.Start()
	go s.Endpoint.Run(s.ctx, s.selfReactor)

	for name, factory := range workers {
		if err := s.Spawn(name, factory); err != nil {
			s.logger.Errorf("spawn %s failed: %v", name, err)
		}
	}

	if app != nil {
		if err := app.Listen(s.ctx, s, s.cfg.Host(), s.cfg.Port()); err != nil {
			s.logger.Errorf("front-end application failed to listen: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			s.Stop()
		}
	}()

	s.pingStop = s.selfReactor.SetPeriodic(s.cfg.WatchdogPingTimeout(), s.sendPings)

	<-s.ctx.Done()

	signal.Stop(sigCh)
	close(sigCh)

	if app != nil {
		_ = app.Close()
	}
	_ = s.selfReactor.Stop(context.Background())

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	return nil
}

func (s *Service) sendPings() {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))
	for n := range s.workers {
		names = append(names, n)
	}
	s.mu.Unlock()

	for _, n := range names {
		if err := s.router.Enqueue(n, Ping()); err != nil {
			s.logger.Debugf("ping to %s skipped: %v", n, err)
		}
	}
}

// Spawn (re)creates the named worker: if a prior, still-live record
// exists it is terminated first; a fresh mailbox and Endpoint are wired
// into the router, and the worker's event loop starts on its own
// goroutine. A handler observes its exit-notification channel and
// schedules a respawn after a short delay.
func (s *Service) Spawn(name string, factory WorkerFactory) error {
	s.mu.Lock()
	if s.state == StateStopping || s.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	if prev, ok := s.workers[name]; ok {
		atomic.StoreInt32(&prev.standDown, 1)
		prev.cancel()
		s.mu.Unlock()
		<-prev.done
		s.mu.Lock()
	}
	s.mu.Unlock()

	mailbox := NewMailbox(s.cfg.MailboxCapacity())
	ep := newEndpoint(name, mailbox, s.router, s.logger, s.cfg.Debug())
	s.router.Register(name, mailbox)

	wctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	worker := factory()

	go func() {
		defer close(done)
		runWorker(wctx, ep, worker, s.cfg.WatchdogCheckTimeout(), s.logger, func(detail string) {
			s.events.emit(Event{Kind: EventWorkerWatchdogHit, Worker: name, At: time.Now(), Detail: detail})
		})
	}()

	rec := &workerRecord{factory: factory, cancel: cancel, done: done, lastSpawn: time.Now()}
	s.mu.Lock()
	s.workers[name] = rec
	s.mu.Unlock()

	go s.watchExit(name, rec)
	return nil
}

// watchExit observes a worker's exit-notification handle; when it fires
// while the supervisor is still Running, it removes the directory entry
// and schedules a respawn 200ms later. If
// Spawn marked rec as standing down (it is being replaced under the same
// name), this handler exits without touching the router or scheduling
// anything - the replacement's own watchExit goroutine now owns that name.
func (s *Service) watchExit(name string, rec *workerRecord) {
	<-rec.done

	if atomic.LoadInt32(&rec.standDown) == 1 {
		return
	}

	s.mu.Lock()
	cur, ok := s.workers[name]
	stopping := s.state == StateStopping || s.state == StateStopped
	s.mu.Unlock()

	if !ok || cur != rec || stopping {
		return
	}

	s.router.Unregister(name)
	s.logger.Warnf("worker %s exited, respawning in 200ms", name)
	s.events.emit(Event{Kind: EventWorkerRespawned, Worker: name, At: time.Now(), Detail: "worker exited, respawn scheduled"})

	time.AfterFunc(200*time.Millisecond, func() {
		s.mu.Lock()
		stillCurrent := s.workers[name] == rec
		stillStopping := s.state == StateStopping || s.state == StateStopped
		s.mu.Unlock()
		if stillStopping || !stillCurrent {
			return
		}
		if err := s.Spawn(name, rec.factory); err != nil {
			s.logger.Errorf("respawn %s failed: %v", name, err)
		}
	})
}

// Stop performs a graceful, idempotent shutdown: it is safe to call from
// a signal handler goroutine. Only the supervisor is allowed to terminate
// workers; it cancels each worker's context, waits for every exit, then
// stops its own loop.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state == StateStopping || s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	recs := make([]*workerRecord, 0, len(s.workers))
	for _, r := range s.workers {
		recs = append(recs, r)
	}
	s.mu.Unlock()

	for _, r := range recs {
		r.cancel()
	}
	for _, r := range recs {
		<-r.done
	}
	if s.pingStop != nil {
		s.pingStop()
	}
	s.cancel()
}
