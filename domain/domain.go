// Package domain implements spec.md §4.9's tag/pipe plumbing: an algorithm
// tag applied to a sender produces a sender package carrying the tag, the
// predecessor, and the algorithm's arguments; at connect time the package
// dispatches to the concrete per-scheduler sender. Piping (Go has no `|`
// operator overload) is realized as ordinary method chaining, grounded on
// the Operation.Then composition idiom in
// _examples/b97tsk-async/task.go.
package domain

import (
	"context"
	"sync"

	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/opstate"
)

// Package is a sender package (spec.md §4.9): a bound algorithm tag over a
// predecessor sender producing A, dispatching via TagInvoke to the concrete
// sender that produces B.
//
// This module has exactly one domain — the loop-driven one alg implements
// directly — so TagInvoke never actually branches on a Domain argument the
// way a multi-scheduler system's tag_invoke would; the interface still
// names the dispatch point spec.md describes, so a second domain could be
// added later without reshaping call sites.
type Package[A, B any] interface {
	TagInvoke(pred alg.Sender[A]) alg.Sender[B]
}

// Closure is an algorithm with only its arguments bound (no predecessor):
// spec.md §4.9's "behaves as a closure that prepends the left operand."
type Closure[A, B any] func(pred alg.Sender[A]) alg.Sender[B]

// Pipe applies c to pred, the Go stand-in for uvexec's `pred | c`.
func Pipe[A, B any](pred alg.Sender[A], c Closure[A, B]) alg.Sender[B] {
	return c(pred)
}

// Then sequences pred and next: connect pred, and on its value hand off to
// next(value); pred's error/stopped propagate directly, matching every
// higher-order adaptor's disposition-forwarding rule in spec.md §4.7 but
// for plain two-sender composition instead of a scoped resource.
//
// Grounded on _examples/b97tsk-async/task.go's Operation.Then: "first works
// on op, then switches to work on next after op completes."
func Then[A, B any](pred alg.Sender[A], next func(A) alg.Sender[B]) alg.Sender[B] {
	return alg.FromConnect(func(r opstate.Receiver[B]) alg.OpState {
		return alg.FromStart(func() {
			op := pred.Connect(&thenReceiver[A, B]{next: next, out: r})
			op.Start()
		})
	})
}

type thenReceiver[A, B any] struct {
	next func(A) alg.Sender[B]
	out  opstate.Receiver[B]
}

func (t *thenReceiver[A, B]) SetValue(v A) {
	op := t.next(v).Connect(t.out)
	op.Start()
}

func (t *thenReceiver[A, B]) SetError(err error) { t.out.SetError(err) }
func (t *thenReceiver[A, B]) SetStopped()        { t.out.SetStopped() }

// WhenAny races each builder's sender, built against a shared child context
// of ctx, and completes with whichever finishes first; the rest are told to
// stop by canceling that child context, mirroring
// _examples/b97tsk-async/coroutine.go's Select: "runs each of the given
// tasks ... and awaits until any of them completes ... tasks other than the
// one that completes are canceled."
//
// Builders receive the child context rather than a already-built Sender
// because every algorithm in package alg bakes its stop-token in at
// construction time; WhenAny needs to own that token to cancel losers.
//
// With no builders, WhenAny's sender never completes, matching Select's
// documented empty-argument behavior.
func WhenAny[V any](ctx context.Context, builders ...func(context.Context) alg.Sender[V]) alg.Sender[V] {
	return alg.FromConnect(func(r opstate.Receiver[V]) alg.OpState {
		return alg.FromStart(func() {
			if len(builders) == 0 {
				return
			}

			childCtx, cancel := context.WithCancel(ctx)
			sel := &whenAnySelector[V]{cancel: cancel, out: r}

			ops := make([]alg.OpState, len(builders))
			for i, build := range builders {
				ops[i] = build(childCtx).Connect(&whenAnyReceiver[V]{sel: sel})
			}
			for _, op := range ops {
				op.Start()
			}
		})
	})
}

// whenAnySelector is shared by every branch of one WhenAny race so that
// exactly one of them can win.
type whenAnySelector[V any] struct {
	once   sync.Once
	cancel context.CancelFunc
	out    opstate.Receiver[V]
}

type whenAnyReceiver[V any] struct {
	sel *whenAnySelector[V]
}

func (w *whenAnyReceiver[V]) SetValue(v V) {
	w.sel.once.Do(func() {
		w.sel.cancel()
		w.sel.out.SetValue(v)
	})
}

func (w *whenAnyReceiver[V]) SetError(err error) {
	w.sel.once.Do(func() {
		w.sel.cancel()
		w.sel.out.SetError(err)
	})
}

func (w *whenAnyReceiver[V]) SetStopped() {
	w.sel.once.Do(func() {
		w.sel.cancel()
		w.sel.out.SetStopped()
	})
}

// AsClosure turns a two-argument algorithm constructor into a [Closure] by
// binding everything but the predecessor, the shape every tag in package
// alg has (e.g. alg.Send takes a socket and a buffer, not a predecessor —
// domain's job is only to give it the pipe-sugar calling convention).
func AsClosure[A, B any](build func(A) alg.Sender[B]) Closure[A, B] {
	return func(pred alg.Sender[A]) alg.Sender[B] {
		return Then(pred, build)
	}
}
