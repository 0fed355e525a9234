package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/procmesh/pkg/corelog"
	"github.com/fluxorio/procmesh/pkg/reactor"
)

// MethodHandler is an explicit, named, callable exposed by an endpoint to
// remote CALLs. Each endpoint maps a method name to one of these, so the
// CALL surface is static, discoverable and serialization-friendly - no
// reflection-based string dispatch.
type MethodHandler func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// MessageHandler handles an inbound fire-and-forget MESSAGE. It is the
// Go-idiomatic rendition of the user-overridable on_message hook.
type MessageHandler func(payload interface{})

// Endpoint is the common base for both the supervisor and every worker:
// it owns a mailbox, parses the four envelope variants, dispatches CALL
// to local methods, and resolves futures. PING, MESSAGE and CALL
// processing for one Endpoint runs serialized on a single reactor.Reactor,
// preserving the single-threaded cooperative dispatch loop invariant even
// though the mailbox is drained by its own pump goroutine; FUTURE replies,
// which run no user code, are resolved on the pump goroutine itself.
type Endpoint struct {
	name     string
	mailbox  Mailbox
	router   *Router
	logger   corelog.Logger
	debug    bool
	instance string

	methodsMu sync.Mutex
	methods   map[string]MethodHandler

	handlerMu sync.Mutex
	handler   MessageHandler

	pendingMu sync.Mutex
	pending   map[string]*pendingCall
	callSeq   uint64

	livenessMu   sync.Mutex
	lastPingedAt time.Time
}

func newEndpoint(name string, mailbox Mailbox, router *Router, logger corelog.Logger, debug bool) *Endpoint {
	return &Endpoint{
		name:         name,
		mailbox:      mailbox,
		router:       router,
		logger:       logger,
		debug:        debug,
		instance:     generateUUID(),
		methods:      make(map[string]MethodHandler),
		pending:      make(map[string]*pendingCall),
		lastPingedAt: time.Now(),
	}
}

// Name returns the endpoint's address (its FQCN).
func (e *Endpoint) Name() string { return e.name }

// RegisterMethod exposes fn under name as a CALL target.
func (e *Endpoint) RegisterMethod(name string, fn MethodHandler) {
	e.methodsMu.Lock()
	defer e.methodsMu.Unlock()
	e.methods[name] = fn
}

// SetMessageHandler installs the on_message hook. A nil handler silently
// discards inbound MESSAGE envelopes.
func (e *Endpoint) SetMessageHandler(fn MessageHandler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.handler = fn
}

// SendMessage enqueues a fire-and-forget MESSAGE to recipient. On router
// queue overflow it logs and returns; the message is dropped and the drop
// is never surfaced to the caller.
func (e *Endpoint) SendMessage(recipient string, payload interface{}) {
	if e.debug {
		e.logger.Debugf("%s: -> %s MESSAGE %+v", e.name, recipient, payload)
	}
	if err := e.router.Enqueue(recipient, Message(payload)); err != nil {
		e.logger.Warnf("%s: send_message to %q dropped: %v", e.name, recipient, err)
	}
}

// RemoteCall allocates a call_id, registers a pending slot, and enqueues a
// CALL envelope to recipient. It returns a Future that resolves once a
// matching FUTURE is observed, the enqueue itself fails (transport-full,
// resolved immediately), or (if WithDeadline was given) the deadline
// elapses first.
func (e *Endpoint) RemoteCall(recipient, method string, args []interface{}, kwargs map[string]interface{}, opts ...CallOption) *Future {
	var options CallOptions
	for _, o := range opts {
		o(&options)
	}

	callID := e.nextCallID()
	resultCh := make(chan callResult, 1)
	pc := &pendingCall{resultCh: resultCh}

	e.pendingMu.Lock()
	e.pending[callID] = pc
	e.pendingMu.Unlock()

	if options.deadline > 0 {
		pc.timer = time.AfterFunc(options.deadline, func() {
			e.pendingMu.Lock()
			_, ok := e.pending[callID]
			delete(e.pending, callID)
			e.pendingMu.Unlock()
			if ok {
				resultCh <- callResult{err: NewError(KindTimeout, "remote_call %s.%s timed out", recipient, method)}
			}
		})
	}

	if e.debug {
		e.logger.Debugf("%s: -> %s CALL %s id=%s", e.name, recipient, method, callID)
	}

	env := Call(method, args, kwargs, callID, e.name)
	if err := e.router.Enqueue(recipient, env); err != nil {
		e.pendingMu.Lock()
		_, ok := e.pending[callID]
		delete(e.pending, callID)
		e.pendingMu.Unlock()
		if ok {
			if pc.timer != nil {
				pc.timer.Stop()
			}
			resultCh <- callResult{err: NewError(KindTransportFull, "remote_call to %q dropped: %v", recipient, err)}
		}
	}

	return &Future{ch: resultCh}
}

// nextCallID combines a per-incarnation instance ID with a monotonic
// counter, so call IDs stay unique across an endpoint's respawns even
// though each incarnation restarts the counter at 1.
func (e *Endpoint) nextCallID() string {
	n := atomic.AddUint64(&e.callSeq, 1)
	return fmt.Sprintf("%s#%s.%d", e.name, e.instance, n)
}

// Run drains the mailbox. PING, MESSAGE and CALL envelopes are posted
// onto rct, so everything that can reach user code runs serially on that
// single reactor; FUTURE replies resolve inline on the pump. It returns
// when ctx is done or the mailbox is closed.
func (e *Endpoint) Run(ctx context.Context, rct *reactor.Reactor) {
	for {
		env, err := e.mailbox.Receive(ctx)
		if err != nil {
			return
		}
		if env.Tag == TagFuture {
			// FUTURE replies resolve off the reactor: no user code runs on
			// this path, and a method blocked in Future.Wait on this
			// endpoint's own loop must still see its reply arrive - this is
			// what lets a CALL handler remote-call another endpoint and
			// return its result.
			e.touchLiveness()
			e.handleFuture(env)
			continue
		}
		if postErr := rct.Post(func() { e.dispatch(env) }); postErr != nil {
			e.logger.Warnf("%s: event loop backpressure, %s envelope dropped: %v", e.name, env.Tag, postErr)
		}
	}
}

// dispatch branches on the envelope tag: PING refreshes liveness only,
// MESSAGE goes to the message handler, CALL invokes a registered method.
func (e *Endpoint) dispatch(env Envelope) {
	e.touchLiveness()

	switch env.Tag {
	case TagPing:
		// No further action; arrival alone refreshed liveness above.
	case TagMessage:
		e.handlerMu.Lock()
		h := e.handler
		e.handlerMu.Unlock()
		if h != nil {
			h(env.Payload)
		}
	case TagCall:
		e.handleCall(env)
	}
}

func (e *Endpoint) handleCall(env Envelope) {
	e.methodsMu.Lock()
	fn, ok := e.methods[env.Method]
	e.methodsMu.Unlock()

	if !ok {
		e.replyFuture(env.ReplyTo, env.CallID, FutureErr(env.CallID,
			NewError(KindMethodNotFound, "%s.%s", e.name, env.Method)))
		return
	}

	result, err := e.invoke(fn, env.Args, env.Kwargs)
	if err != nil {
		var calleeErr *Error
		if ce, ok := err.(*Error); ok {
			calleeErr = ce
		} else {
			calleeErr = NewError(KindCalleeError, "%v", err)
		}
		e.replyFuture(env.ReplyTo, env.CallID, FutureErr(env.CallID, calleeErr))
		return
	}
	e.replyFuture(env.ReplyTo, env.CallID, FutureOK(env.CallID, result))
}

// invoke runs fn on the endpoint's own loop, recovering a panic into a
// callee-error descriptor so it never escapes the dispatch loop.
func (e *Endpoint) invoke(fn MethodHandler, args []interface{}, kwargs map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindCalleeError, "panic: %v", r)
		}
	}()
	return fn(args, kwargs)
}

func (e *Endpoint) replyFuture(replyTo, callID string, env Envelope) {
	if e.debug {
		e.logger.Debugf("%s: -> %s FUTURE id=%s ok=%v", e.name, replyTo, callID, env.OK)
	}
	if err := e.router.Enqueue(replyTo, env); err != nil {
		e.logger.Warnf("%s: FUTURE reply to %q lost: %v", e.name, replyTo, err)
	}
}

func (e *Endpoint) handleFuture(env Envelope) {
	e.pendingMu.Lock()
	pc, ok := e.pending[env.CallID]
	if ok {
		delete(e.pending, env.CallID)
	}
	e.pendingMu.Unlock()

	if !ok {
		e.logger.Warnf("%s: FUTURE for unknown or expired call_id %q discarded", e.name, env.CallID)
		return
	}
	if pc.timer != nil {
		pc.timer.Stop()
	}
	if env.OK {
		pc.resultCh <- callResult{value: env.Value}
	} else {
		pc.resultCh <- callResult{err: env.Err}
	}
}

// touchLiveness refreshes the last-inbound timestamp; any inbound
// envelope counts as a sign of life, not just PING.
func (e *Endpoint) touchLiveness() {
	e.livenessMu.Lock()
	e.lastPingedAt = time.Now()
	e.livenessMu.Unlock()
}

// SilentFor reports how long it has been since the last inbound envelope.
func (e *Endpoint) SilentFor() time.Duration {
	e.livenessMu.Lock()
	defer e.livenessMu.Unlock()
	return time.Since(e.lastPingedAt)
}

// failAllPending rejects every outstanding pending call with err, used at
// endpoint teardown so no caller is left waiting forever.
func (e *Endpoint) failAllPending(err *Error) {
	e.pendingMu.Lock()
	pendings := e.pending
	e.pending = make(map[string]*pendingCall)
	e.pendingMu.Unlock()

	for _, pc := range pendings {
		if pc.timer != nil {
			pc.timer.Stop()
		}
		pc.resultCh <- callResult{err: err}
	}
}
