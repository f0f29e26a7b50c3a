// Package syncwait converts a sender into a blocking call, per spec.md
// §4.8: connect the sender to a receiver that records the completion
// variant, drive the owning loop cooperatively until it fires, then project
// the result into a value, an error, or "stopped".
package syncwait

import (
	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/opstate"
)

type variantKind int

const (
	emptyKind variantKind = iota
	valueKind
	stoppedKind
	errorKind
)

// variant is the completion record spec.md §4.8 describes: "a variant
// {empty, value, stopped, error(exception)}"; the zero value is "empty",
// meaning the receiver was never invoked (a programming error upstream,
// never expected to surface here).
type variant[V any] struct {
	kind variantKind
	val  V
	err  error
}

// receiver writes into a variant and then calls wake, matching spec.md
// §4.8's "connects the sender to a receiver that writes the completion into
// a variant [...] and then calls a wakeup functor."
type receiver[V any] struct {
	out  *variant[V]
	wake func()
}

func (r *receiver[V]) SetValue(v V) {
	*r.out = variant[V]{kind: valueKind, val: v}
	r.wake()
}

func (r *receiver[V]) SetError(err error) {
	*r.out = variant[V]{kind: errorKind, err: err}
	r.wake()
}

func (r *receiver[V]) SetStopped() {
	*r.out = variant[V]{kind: stoppedKind}
	r.wake()
}

// sender is the minimal shape package alg's Sender[V] provides. Go's
// interface-identity rules require the exact opstate/alg types here (a
// structurally-identical but separately declared interface does not
// satisfy method-signature matching), so sender is defined in terms of
// them directly rather than via a locally duplicated shape.
type sender[V any] interface {
	Connect(r opstate.Receiver[V]) alg.OpState
}

// Wait connects s, starts it on l, and blocks the calling goroutine until s
// completes, cooperating with any other goroutine simultaneously driving or
// waiting on l via l's runner-stealing protocol (spec.md §4.1).
//
// It returns (value, true, nil) on set_value; (zero, false, nil) on
// set_stopped, matching spec.md §7's "sync_wait returns None on stopped";
// and (zero, false, err) on set_error — the Go idiom for §7's "rethrows on
// error" is an explicit error return rather than a panic.
func Wait[V any](l *loop.Loop, s sender[V]) (V, bool, error) {
	var v variant[V]
	done := false

	op := s.Connect(&receiver[V]{
		out: &v,
		wake: func() {
			done = true
			l.RequestFinish()
		},
	})

	// The op-state must be started on the loop thread (spec.md §4.2 step 2
	// touches OS resources there); schedule it exactly like any other
	// cross-thread submission rather than calling Start directly.
	l.ScheduleFunc(op.Start)

	l.WaitUntil(func() bool { return done })

	switch v.kind {
	case valueKind:
		return v.val, true, nil
	case errorKind:
		var zero V
		return zero, false, v.err
	default: // stoppedKind
		var zero V
		return zero, false, nil
	}
}
