// Package opstate defines the operation-state / receiver protocol every
// algorithm in package alg is built on (spec.md §4.2): construction at
// connect, arming at start, at-most-once completion delivered on the loop
// thread through exactly one of Value/Error/Stopped.
package opstate

import (
	"context"
	"sync/atomic"
)

// Receiver is the downstream continuation of a sender chain. Exactly one of
// its three methods is invoked, exactly once, on the loop thread, per
// spec.md §3's op-state invariant.
type Receiver[V any] interface {
	SetValue(v V)
	SetError(err error)
	SetStopped()
}

// Base is embedded by every op-state. It gates completion behind a single
// atomic flag so that, when an OS callback and a cancellation race, exactly
// one of them wins — spec.md §3's "atomic used-flag ensuring at-most-once
// completion."
type Base struct {
	claimed uint32
}

// Claim attempts to be the first (and only) path to complete the op-state.
// Returns true exactly once, to exactly one caller.
func (b *Base) Claim() bool {
	return atomic.CompareAndSwapUint32(&b.claimed, 0, 1)
}

// IsClaimed peeks at the flag without claiming it. Safe to call from
// whichever thread already serializes with every Claim caller (the loop
// thread, for every op-state in this module); used to skip arming an OS
// resource that a same-thread cancellation already beat to completion.
func (b *Base) IsClaimed() bool {
	return atomic.LoadUint32(&b.claimed) != 0
}

// StopOp is the cancellation adaptor spec.md §3 calls "stop-operation": an
// operation whose Apply runs an OS-specific cancellation fast-path on the
// loop thread, gated by the same Base flag its owning op-state uses so the
// two paths can never both complete the receiver.
//
// StopOp registers on the stop-token via context.AfterFunc rather than a
// hand-rolled callback list, since Go 1.21's context package already
// provides exactly the "callback fires once, on cancellation, cheaply
// unregisterable" primitive spec.md's stop-callback needs.
type StopOp struct {
	base   *Base
	cancel func() // unregisters the AfterFunc registration
}

// Setup installs the cancellation callback, to be called immediately after
// the OS call has been issued (spec.md §4.2 step 3). schedule is called,
// from the requesting goroutine, if this StopOp wins the race to claim
// base; it is expected to submit the actual OS-cancellation onto the loop
// thread (e.g. via Loop.Schedule).
func (s *StopOp) Setup(base *Base, ctx context.Context, schedule func()) {
	s.base = base
	if ctx == nil {
		return
	}
	stop := context.AfterFunc(ctx, func() {
		if s.base.Claim() {
			schedule()
		}
	})
	s.cancel = func() { stop() }
}

// Teardown unregisters the cancellation callback once the op-state has
// completed through the OS-callback path, so a StopOp can never outlive its
// target (spec.md §9's "cyclic references" design note).
func (s *StopOp) Teardown() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
