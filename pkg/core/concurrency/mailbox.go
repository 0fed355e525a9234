package concurrency

import (
	"context"
	"errors"
)

var (
	// ErrMailboxClosed is returned when trying to send/receive on a closed mailbox
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrMailboxFull is returned when trying to send to a full mailbox (backpressure)
	ErrMailboxFull = errors.New("mailbox is full")

	// ErrMailboxEmpty is returned when trying to receive from an empty mailbox (non-blocking)
	ErrMailboxEmpty = errors.New("mailbox is empty")
)

// Mailbox abstracts channel operations behind a message passing API,
// parameterized over the element type T it carries. The two call sites in
// this tree each instantiate it with a different T - the router's shared
// inbound queue carries (recipient, envelope) pairs, a per-endpoint mailbox
// carries bare envelopes - so the wire type flows through Send/Receive
// directly instead of being boxed into interface{} and type-asserted back
// out on the read side.
type Mailbox[T any] interface {
	// Send sends a message to the mailbox
	// Returns ErrMailboxFull if mailbox is full (backpressure)
	// Returns ErrMailboxClosed if mailbox is closed
	Send(msg T) error

	// Receive receives a message from the mailbox
	// Blocks until a message is available or ctx is cancelled
	// Returns ErrMailboxClosed if mailbox is closed
	Receive(ctx context.Context) (T, error)

	// TryReceive attempts to receive a message without blocking
	// Returns (msg, true) if message available, (zero, false) if empty
	// Returns ErrMailboxClosed if mailbox is closed
	TryReceive() (T, bool, error)

	// Close closes the mailbox
	// After closing, Send/Receive operations will return ErrMailboxClosed
	Close()

	// Capacity returns the maximum capacity of the mailbox
	Capacity() int

	// Size returns the current number of messages in the mailbox
	Size() int

	// IsClosed returns true if the mailbox is closed
	IsClosed() bool
}
