package core

import (
	"context"
	"time"
)

// callResult is the value a pending call is eventually resolved with.
type callResult struct {
	value interface{}
	err   *Error
}

// pendingCall is the pending-result slot an endpoint's pending-call table
// maps a call_id to.
type pendingCall struct {
	resultCh chan callResult
	timer    *time.Timer
}

// CallOptions configures a single RemoteCall.
type CallOptions struct {
	deadline time.Duration
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithDeadline gives remote_call an optional deadline: when it elapses
// before a matching FUTURE arrives, the pending slot is removed and the
// future rejects with a timeout descriptor; any later FUTURE for that
// call_id is discarded by handleFuture's ordinary "absent, log and
// discard" path. There is no automatic per-call timeout; this is the
// opt-in knob.
func WithDeadline(d time.Duration) CallOption {
	return func(o *CallOptions) { o.deadline = d }
}

// Future is the handle returned by RemoteCall. It resolves exactly once,
// either to the callee's return value or to a portable error descriptor.
type Future struct {
	ch <-chan callResult
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case r, ok := <-f.ch:
		if !ok {
			return nil, NewError(KindTransportFull, "future channel closed without a result")
		}
		if r.err != nil {
			return nil, r.err
		}
		return r.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
