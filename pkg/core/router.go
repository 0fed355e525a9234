package core

import (
	"context"
	"sync"

	"github.com/fluxorio/procmesh/pkg/corelog"
)

// Router is the central multiplexer: one instance per supervisor. It
// reads (recipient_name, envelope) pairs off a shared inbound queue and
// fans each one out to the recipient's mailbox by name. It never
// interprets envelope contents - only the recipient name.
type Router struct {
	queue     RouterQueue
	directory sync.Map // name (string) -> Mailbox
	logger    corelog.Logger
	debug     bool
}

// NewRouter creates a Router with the given router-queue capacity.
func NewRouter(queueCapacity int, logger corelog.Logger, debug bool) *Router {
	return &Router{
		queue:  NewRouterQueue(queueCapacity),
		logger: logger,
		debug:  debug,
	}
}

// Register adds (or replaces) the mailbox a recipient name routes to.
func (r *Router) Register(name string, mailbox Mailbox) {
	r.directory.Store(name, mailbox)
}

// Unregister removes a recipient from the directory. Envelopes already
// routed to its mailbox are unaffected; new ones are dropped as unknown.
func (r *Router) Unregister(name string) {
	r.directory.Delete(name)
}

// Enqueue is a non-blocking offer: it never blocks the caller, and
// returns an error (without panicking or logging itself) when the shared
// router queue is at capacity.
func (r *Router) Enqueue(recipient string, env Envelope) error {
	return r.queue.Send(RoutedEnvelope{Recipient: recipient, Envelope: env})
}

// Run drives the router's loop: it pops one pair at a time from the
// queue until ctx is cancelled or the queue is closed.
func (r *Router) Run(ctx context.Context) {
	for {
		re, err := r.queue.Receive(ctx)
		if err != nil {
			return
		}
		r.routeOne(re)
	}
}

// routeOne handles a single pair: look the recipient up, offer the
// envelope to its mailbox, and log+drop on either an unknown recipient or
// a full mailbox. It never panics and never retries.
func (r *Router) routeOne(re RoutedEnvelope) {
	v, ok := r.directory.Load(re.Recipient)
	if !ok {
		r.logger.Warnf("router: unknown recipient %q, %s envelope dropped", re.Recipient, re.Envelope.Tag)
		return
	}
	mailbox := v.(Mailbox)
	if err := mailbox.Send(re.Envelope); err != nil {
		r.logger.Warnf("router: mailbox full for %q, %s envelope dropped: %v", re.Recipient, re.Envelope.Tag, err)
		return
	}
	if r.debug {
		r.logger.Debugf("router: routed %s envelope to %q", re.Envelope.Tag, re.Recipient)
	}
}
