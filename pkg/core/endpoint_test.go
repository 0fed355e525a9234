package core

import (
	"context"
	"testing"
	"time"

	"github.com/fluxorio/procmesh/pkg/corelog"
	"github.com/fluxorio/procmesh/pkg/reactor"
)

type testHarness struct {
	router *Router
	logger corelog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := corelog.NewDefault()
	router := NewRouter(64, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	go router.Run(ctx)
	t.Cleanup(cancel)
	return &testHarness{router: router, logger: logger, ctx: ctx, cancel: cancel}
}

// spawn wires up a running endpoint named name and returns it; its loop
// runs until the harness's context is cancelled.
func (h *testHarness) spawn(t *testing.T, name string, capacity int) *Endpoint {
	t.Helper()
	mb := NewMailbox(capacity)
	ep := newEndpoint(name, mb, h.router, h.logger, false)
	h.router.Register(name, mb)

	rct := reactor.NewReactor(reactor.ReactorOptions{MailboxSize: 256})
	rct.Start()
	t.Cleanup(func() { _ = rct.Stop(context.Background()) })
	go ep.Run(h.ctx, rct)
	return ep
}

func TestRemoteCallOneHop(t *testing.T) {
	h := newTestHarness(t)

	caller := h.spawn(t, "caller", 8)
	callee := h.spawn(t, "callee", 8)
	callee.RegisterMethod("sync_call", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"method": "sync_call", "marker": args[0]}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := caller.RemoteCall("callee", "sync_call", []interface{}{"hello"}, nil)
	result, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	m, ok := result.(map[string]interface{})
	if !ok || m["marker"] != "hello" {
		t.Errorf("result = %+v, want marker=hello", result)
	}
}

// TestRemoteCallTwoHop has the middle endpoint's method itself
// remote-call a third endpoint and block on the result before replying.
// The reply can only arrive because FUTURE envelopes resolve off the
// reactor; if they queued behind the blocked handler this would deadlock
// until the Wait context expired.
func TestRemoteCallTwoHop(t *testing.T) {
	h := newTestHarness(t)

	caller := h.spawn(t, "hop-caller", 8)
	relay := h.spawn(t, "hop-relay", 8)
	target := h.spawn(t, "hop-target", 8)

	target.RegisterMethod("sync_call", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"method": "sync_call", "marker": args[0]}, nil
	})
	relay.RegisterMethod("async_call", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		inner := relay.RemoteCall("hop-target", "sync_call", args, nil)
		innerCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return inner.Wait(innerCtx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	future := caller.RemoteCall("hop-relay", "async_call", []interface{}{"ping"}, nil)
	result, err := future.Wait(ctx)
	if err != nil {
		t.Fatalf("two-hop Wait() error = %v", err)
	}
	m, ok := result.(map[string]interface{})
	if !ok || m["marker"] != "ping" {
		t.Errorf("result = %+v, want the target's response with marker=ping", result)
	}
}

func TestRemoteCallMethodNotFound(t *testing.T) {
	h := newTestHarness(t)
	caller := h.spawn(t, "caller2", 8)
	h.spawn(t, "callee2", 8)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := caller.RemoteCall("callee2", "nonexistent", nil, nil)
	_, err := future.Wait(ctx)
	if err == nil {
		t.Fatal("expected method-not-found error")
	}
	ipcErr, ok := err.(*Error)
	if !ok || ipcErr.Kind != KindMethodNotFound {
		t.Errorf("err = %v, want *Error{Kind: method-not-found}", err)
	}
}

func TestRemoteCallCapturesCalleePanic(t *testing.T) {
	h := newTestHarness(t)
	caller := h.spawn(t, "caller3", 8)
	callee := h.spawn(t, "callee3", 8)
	callee.RegisterMethod("boom", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		panic("kaboom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := caller.RemoteCall("callee3", "boom", nil, nil)
	_, err := future.Wait(ctx)
	if err == nil {
		t.Fatal("expected callee-error from recovered panic")
	}
	ipcErr, ok := err.(*Error)
	if !ok || ipcErr.Kind != KindCalleeError {
		t.Errorf("err = %v, want *Error{Kind: callee-error}", err)
	}

	// The callee must remain alive and keep answering subsequent calls.
	callee.RegisterMethod("ping_back", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return "alive", nil
	})
	future2 := caller.RemoteCall("callee3", "ping_back", nil, nil)
	v, err := future2.Wait(ctx)
	if err != nil || v != "alive" {
		t.Errorf("callee3 did not survive the panic: v=%v err=%v", v, err)
	}
}

func TestRemoteCallTransportFullResolvesImmediately(t *testing.T) {
	logger := corelog.NewDefault()
	router := NewRouter(1, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Do not run router.Run: nothing drains the queue, so a second
	// Enqueue onto a capacity-1 queue overflows deterministically.
	_ = ctx

	mb := NewMailbox(1)
	ep := newEndpoint("solo", mb, router, logger, false)
	router.Register("solo", mb)

	// Fill the router's single slot directly so RemoteCall's own Enqueue fails.
	if err := router.Enqueue("solo", Ping()); err != nil {
		t.Fatalf("priming Enqueue() error = %v", err)
	}

	future := ep.RemoteCall("solo", "whatever", nil, nil)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	_, err := future.Wait(waitCtx)
	if err == nil {
		t.Fatal("expected transport-full error when the router queue is saturated")
	}
	ipcErr, ok := err.(*Error)
	if !ok || ipcErr.Kind != KindTransportFull {
		t.Errorf("err = %v, want *Error{Kind: transport-full}", err)
	}
}

func TestRemoteCallDeadlineTimesOut(t *testing.T) {
	h := newTestHarness(t)
	caller := h.spawn(t, "caller4", 8)
	h.spawn(t, "callee4", 8) // never registers the method, but that's irrelevant: it won't even be called

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := caller.RemoteCall("ghost-recipient-that-does-not-exist", "m", nil, nil, WithDeadline(50*time.Millisecond))
	_, err := future.Wait(ctx)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	ipcErr, ok := err.(*Error)
	if !ok || ipcErr.Kind != KindTimeout {
		t.Errorf("err = %v, want *Error{Kind: timeout}", err)
	}
}

func TestOnMessageDelivery(t *testing.T) {
	h := newTestHarness(t)
	sender := h.spawn(t, "sender", 8)
	receiver := h.spawn(t, "receiver", 8)

	received := make(chan interface{}, 1)
	receiver.SetMessageHandler(func(payload interface{}) {
		received <- payload
	})

	sender.SendMessage("receiver", "ahoy")

	select {
	case p := <-received:
		if p != "ahoy" {
			t.Errorf("received payload = %v, want ahoy", p)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for MESSAGE delivery")
	}
}

func TestFailAllPendingRejectsOutstandingCalls(t *testing.T) {
	logger := corelog.NewDefault()
	router := NewRouter(8, logger, false)
	mb := NewMailbox(8)
	ep := newEndpoint("teardown-target", mb, router, logger, false)
	router.Register("teardown-target", mb)

	future := ep.RemoteCall("nobody-will-ever-reply", "m", nil, nil)
	ep.failAllPending(NewError(KindTransportFull, "endpoint torn down"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := future.Wait(ctx)
	if err == nil {
		t.Fatal("expected failAllPending to reject the outstanding future")
	}
}
