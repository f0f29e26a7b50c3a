package alg

import (
	"context"

	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// funcReceiver adapts three plain callbacks into an [opstate.Receiver],
// letting the higher-order adaptors below sequence senders imperatively
// instead of hand-building a chained op-state for every combination.
type funcReceiver[V any] struct {
	onValue   func(V)
	onError   func(error)
	onStopped func()
}

func (f *funcReceiver[V]) SetValue(v V)     { f.onValue(v) }
func (f *funcReceiver[V]) SetError(err error) { f.onError(err) }
func (f *funcReceiver[V]) SetStopped()      { f.onStopped() }

// run connects s to a receiver built from the three callbacks and starts
// it immediately. Every caller in this file is already executing on the
// loop thread (inside another op-state's Start/Apply), so this never
// crosses threads itself.
func run[V any](s Sender[V], onValue func(V), onError func(error), onStopped func()) {
	r := &funcReceiver[V]{onValue: onValue, onError: onError, onStopped: onStopped}
	s.Connect(r).Start()
}

type outcomeKind int

const (
	valueOutcome outcomeKind = iota
	errorOutcome
	stoppedOutcome
)

// outcome captures which of the three receiver channels fired, so the close
// (or drop) step that spec.md §4.7 appends after a scoped resource's body
// can run first and re-deliver the original disposition afterward.
type outcome[V any] struct {
	kind outcomeKind
	val  V
	err  error
}

func deliver[V any](r opstate.Receiver[V], oc outcome[V]) {
	switch oc.kind {
	case valueOutcome:
		r.SetValue(oc.val)
	case errorOutcome:
		r.SetError(oc.err)
	case stoppedOutcome:
		r.SetStopped()
	}
}

// closeThenDeliver runs the async close/drop sender for res, then
// re-delivers oc (the body's original completion) to r — spec.md §4.7's
// "close-on-error receiver [...] first closes the OS handle, then
// re-delivers the saved disposition", generalized to every exit path, not
// only errors, since bind_to/connect_to/accept_from close unconditionally.
func closeThenDeliver[V any](res Closer, r opstate.Receiver[V], oc outcome[V]) {
	run(Close(res),
		func(Void) { deliver(r, oc) },
		func(closeErr error) { r.SetError(closeErr) },
		func() { deliver(r, oc) },
	)
}

// BindToListener constructs a TCP listener bound to ep, passes it to fn,
// and closes it after fn's sender completes, per spec.md §4.7's bind_to.
// On bind failure the error is surfaced directly; fn is never called.
func BindToListener[V any](l *loop.Loop, ep netx.Endpoint, backlog int, fn func(*netx.Listener) Sender[V]) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() {
			ls, err := netx.NewListener(l, ep, backlog)
			if err != nil {
				r.SetError(err)
				return
			}
			run(fn(ls),
				func(v V) { closeThenDeliver(ls, r, outcome[V]{kind: valueOutcome, val: v}) },
				func(err error) { closeThenDeliver(ls, r, outcome[V]{kind: errorOutcome, err: err}) },
				func() { closeThenDeliver(ls, r, outcome[V]{kind: stoppedOutcome}) },
			)
		})
	})
}

// BindToDatagram constructs a UDP socket bound to ep, the send_to/receive_from
// counterpart of [BindToListener] for scenario 6's UDP server.
func BindToDatagram[V any](l *loop.Loop, ep netx.Endpoint, fn func(*netx.Socket) Sender[V]) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() {
			sock, err := netx.NewUDPSocket(l, ep.Family)
			if err != nil {
				r.SetError(err)
				return
			}
			if err := sock.Bind(ep); err != nil {
				run(Close(sock), func(Void) { r.SetError(err) }, func(error) { r.SetError(err) }, func() { r.SetError(err) })
				return
			}
			run(fn(sock),
				func(v V) { closeThenDeliver(sock, r, outcome[V]{kind: valueOutcome, val: v}) },
				func(err error) { closeThenDeliver(sock, r, outcome[V]{kind: errorOutcome, err: err}) },
				func() { closeThenDeliver(sock, r, outcome[V]{kind: stoppedOutcome}) },
			)
		})
	})
}

// ConnectTo constructs a TCP socket, connects it to ep, passes it to fn, and
// closes it afterwards, per spec.md §4.7's connect_to. On connect error or
// cancellation, it closes first, then surfaces the original disposition.
func ConnectTo[V any](l *loop.Loop, ctx context.Context, ep netx.Endpoint, fn func(*netx.Socket) Sender[V]) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() {
			sock, err := netx.NewTCPSocket(l, ep.Family)
			if err != nil {
				r.SetError(err)
				return
			}
			run(Connect(sock, ctx, ep),
				func(Void) {
					run(fn(sock),
						func(v V) { closeThenDeliver(sock, r, outcome[V]{kind: valueOutcome, val: v}) },
						func(err error) { closeThenDeliver(sock, r, outcome[V]{kind: errorOutcome, err: err}) },
						func() { closeThenDeliver(sock, r, outcome[V]{kind: stoppedOutcome}) },
					)
				},
				func(err error) { closeThenDeliver(sock, r, outcome[V]{kind: errorOutcome, err: err}) },
				func() { closeThenDeliver(sock, r, outcome[V]{kind: stoppedOutcome}) },
			)
		})
	})
}

// AcceptFrom constructs a TCP socket, accepts one connection into it from
// ls, passes it to fn, and closes it afterwards, per spec.md §4.7's
// accept_from. This is the eager-construction half of §9's open question
// (a); package alg's plain [Accept] is the out-parameter half.
func AcceptFrom[V any](ls *netx.Listener, ctx context.Context, fn func(*netx.Socket) Sender[V]) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() {
			sock := netx.NewUnboundTCPSocket(ls.Socket().Loop(), ls.Socket().Family())
			run(Accept(ls, sock, ctx),
				func(Void) {
					run(fn(sock),
						func(v V) { closeThenDeliver(sock, r, outcome[V]{kind: valueOutcome, val: v}) },
						func(err error) { closeThenDeliver(sock, r, outcome[V]{kind: errorOutcome, err: err}) },
						func() { closeThenDeliver(sock, r, outcome[V]{kind: stoppedOutcome}) },
					)
				},
				func(err error) { r.SetError(err) },  // sock was never adopted; nothing to close
				func() { r.SetStopped() },
			)
		})
	})
}

// Stoppable is implemented by an async_value payload that owns its own
// cancellation scope. When present, AsyncValue forwards ctx's cancellation
// to it, per spec.md §4.7: "this is how an async scope inside the value
// cooperates with cancellation."
type Stoppable interface {
	RequestStop()
}

// AsyncValue constructs upstream's value T in place, passes &T to fn, and
// runs drop(&T) as an asynchronous destructor once fn's sender completes,
// before completing with fn's original disposition. If upstream itself
// errors or stops, T is never constructed and drop is never called.
func AsyncValue[T, V any](ctx context.Context, upstream Sender[T], drop func(*T) Sender[Void], fn func(*T) Sender[V]) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() {
			run(upstream,
				func(v T) {
					value := v
					var cancelForward func()
					if s, ok := any(&value).(Stoppable); ok {
						stop := context.AfterFunc(ctx, s.RequestStop)
						cancelForward = func() { stop() }
					}
					finish := func(oc outcome[V]) {
						if cancelForward != nil {
							cancelForward()
						}
						run(drop(&value),
							func(Void) { deliver(r, oc) },
							func(dropErr error) { r.SetError(dropErr) },
							func() { deliver(r, oc) },
						)
					}
					run(fn(&value),
						func(v V) { finish(outcome[V]{kind: valueOutcome, val: v}) },
						func(err error) { finish(outcome[V]{kind: errorOutcome, err: err}) },
						func() { finish(outcome[V]{kind: stoppedOutcome}) },
					)
				},
				func(err error) { r.SetError(err) },
				func() { r.SetStopped() },
			)
		})
	})
}
