// Package alg lowers each OS-level operation spec.md §6 names — schedule,
// timed-schedule, signal-once, accept, connect, shutdown, close, send(-to),
// receive(-from), read-some/read-until/write-some — into the sender/op-state
// model of §3/§4.2, plus the higher-order resource adaptors of §4.7.
//
// Every algorithm here follows the same skeleton: a package-level
// constructor returns a [Sender], whose Connect builds an op-state holding
// an [intrusive.Node] so it can be pushed onto a [loop.Loop]'s scheduled
// list. The cancellable ones also embed [opstate.Base] for the at-most-once
// completion flag and [opstate.StopOp] for cancellation; Shutdown, Close and
// SendTo complete in one loop-thread step and carry neither.
package alg

import "github.com/relaypath/aioloop/opstate"

// Void is the unit value every side-effecting algorithm (schedule, connect,
// send, shutdown, close, ...) completes with, standing in for spec.md's "()"
// value column.
type Void struct{}

// OpState is the realized instance produced by connecting a [Sender] to a
// receiver. Start begins the operation; nothing fires before Start is
// called.
type OpState interface {
	Start()
}

// Sender is a lazy description of an asynchronous computation. Connect
// attaches a downstream receiver and returns the op-state that, once
// started, drives it to completion.
type Sender[V any] interface {
	Connect(r opstate.Receiver[V]) OpState
}

// connectFunc adapts a plain function into a [Sender], the same shape as
// _examples/b97tsk-async/task.go's function-valued Task.
type connectFunc[V any] func(opstate.Receiver[V]) OpState

func (f connectFunc[V]) Connect(r opstate.Receiver[V]) OpState { return f(r) }

// FromConnect builds a [Sender] directly from its connect logic. Most
// constructors in this package are one-liners around FromConnect.
func FromConnect[V any](connect func(opstate.Receiver[V]) OpState) Sender[V] {
	return connectFunc[V](connect)
}

// startFunc adapts a plain function into an [OpState].
type startFunc func()

func (f startFunc) Start() { f() }

// fromStart builds an OpState directly from its Start logic.
func fromStart(start func()) OpState { return startFunc(start) }

// FromStart is fromStart's exported form, for package domain's Pipe
// combinator and any other caller outside alg that needs to build an
// OpState from a plain start function without hand-rolling a type.
func FromStart(start func()) OpState { return startFunc(start) }
