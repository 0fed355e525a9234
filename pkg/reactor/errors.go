package reactor

import "errors"

var (
	// ErrBackpressure is returned when a reactor's mailbox is full - the
	// event-loop-level counterpart to a router or endpoint mailbox
	// returning ErrMailboxFull: the caller posting dispatch work (e.g.
	// Endpoint.Run posting one decoded envelope per iteration) backs off
	// and logs rather than blocking the goroutine draining the mailbox.
	ErrBackpressure = errors.New("reactor: backpressure")

	// ErrStopped is returned when Post is attempted on a reactor whose
	// Stop has already run - the state an Endpoint's reactor is left in
	// once its owning worker or supervisor has torn down.
	ErrStopped = errors.New("reactor: stopped")
)
