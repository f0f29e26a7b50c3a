package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/opstate"
)

// scheduleState is the op-state for the plain schedule sender: spec.md §8
// scenario 1, "one schedule sender". It has no OS resource, so it never
// reaches an Armed state — enqueue and completion are the same step.
type scheduleState struct {
	opstate.Base
	l    *loop.Loop
	r    opstate.Receiver[Void]
	stop opstate.StopOp
	node intrusive.Node
}

// Schedule builds a sender that completes with [Void] on the next iteration
// of l's scheduled-list drain, the primitive spec.md §4.1's submission API
// exposes to callers.
func Schedule(l *loop.Loop, ctx context.Context) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &scheduleState{l: l, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *scheduleState) start(ctx context.Context) {
	st.node.Apply = st.fire
	st.stop.Setup(&st.Base, ctx, func() {
		st.l.Schedule(&intrusive.Node{Apply: st.cancel})
	})
	st.l.Schedule(&st.node)
}

func (st *scheduleState) fire() {
	if !st.Claim() {
		return
	}
	st.stop.Teardown()
	st.r.SetValue(Void{})
}

func (st *scheduleState) cancel() {
	st.stop.Teardown()
	st.r.SetStopped()
}
