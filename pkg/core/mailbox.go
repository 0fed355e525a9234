package core

import "github.com/fluxorio/procmesh/pkg/core/concurrency"

// Mailbox is the per-endpoint bounded inbox: written only by the router,
// read only by the owning endpoint. It is concurrency.Mailbox instantiated
// with Envelope, so an owner's Receive call hands back a decoded Envelope
// directly - no interface{} boxing, no type assertion on the read side.
// The underlying channel receive is what wakes the owner's loop when the
// queue goes non-empty; no polling.
type Mailbox = concurrency.Mailbox[Envelope]

// NewMailbox creates a bounded per-endpoint mailbox of the given capacity.
func NewMailbox(capacity int) Mailbox {
	return concurrency.NewBoundedMailbox[Envelope](capacity)
}

// RouterQueue is the single shared inbound queue the router reads: its
// element is the (recipient, envelope) pair the router pops one at a
// time, again instantiated directly rather than boxed.
type RouterQueue = concurrency.Mailbox[RoutedEnvelope]

// NewRouterQueue creates the bounded, shared router queue.
func NewRouterQueue(capacity int) RouterQueue {
	return concurrency.NewBoundedMailbox[RoutedEnvelope](capacity)
}
