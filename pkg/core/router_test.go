package core

import (
	"context"
	"testing"
	"time"

	"github.com/fluxorio/procmesh/pkg/corelog"
)

func drainOne(t *testing.T, mb Mailbox, timeout time.Duration) Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	env, err := mb.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	return env
}

func TestRouterRoutesByRecipientNameOnly(t *testing.T) {
	logger := corelog.NewDefault()
	r := NewRouter(8, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	a := NewMailbox(4)
	b := NewMailbox(4)
	r.Register("a", a)
	r.Register("b", b)

	if err := r.Enqueue("b", Message("hello")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	env := drainOne(t, b, time.Second)
	if env.Tag != TagMessage || env.Payload != "hello" {
		t.Errorf("got %+v, want MESSAGE(hello) delivered to b", env)
	}

	if n := a.Size(); n != 0 {
		t.Errorf("mailbox a received %d envelopes, want 0 (routing must depend only on recipient_name)", n)
	}
}

func TestRouterDropsUnknownRecipient(t *testing.T) {
	logger := corelog.NewDefault()
	r := NewRouter(8, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// No recipient registered; Enqueue must not block or panic, and the
	// envelope is simply dropped by routeOne.
	if err := r.Enqueue("nobody", Message("x")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
}

func TestRouterFIFOPerRecipient(t *testing.T) {
	logger := corelog.NewDefault()
	r := NewRouter(16, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	mb := NewMailbox(16)
	r.Register("a", mb)

	for i := 0; i < 5; i++ {
		if err := r.Enqueue("a", Message(i)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		env := drainOne(t, mb, time.Second)
		if env.Payload != i {
			t.Errorf("envelope %d payload = %v, want %d (FIFO per sender/recipient)", i, env.Payload, i)
		}
	}
}

func TestRouterOverflowDropsWithoutPanic(t *testing.T) {
	logger := corelog.NewDefault()
	r := NewRouter(16, logger, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	mb := NewMailbox(2)
	r.Register("a", mb)

	for i := 0; i < 10; i++ {
		_ = r.Enqueue("a", Message(i))
	}
	time.Sleep(50 * time.Millisecond)

	if n := mb.Size(); n > 2 {
		t.Errorf("mailbox size = %d, want <= capacity 2", n)
	}
}
