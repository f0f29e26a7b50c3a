package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/opstate"
)

// signalOnceState mirrors [timedScheduleState]'s Fresh/Armed/Fired-or-
// Stopped/Closing/Terminal machine (spec.md §4.4: "as in 4.3 but arming is
// signal-once"), swapping the timerfd for a signalfd.
type signalOnceState struct {
	opstate.Base
	l      *loop.Loop
	r      opstate.Receiver[Void]
	signum int
	node   intrusive.Node
	stop   opstate.StopOp
	watch  *osx.SignalWatcher
}

// ScheduleUponSignal completes with [Void] the first time signum is
// delivered to the process, per spec.md §6's schedule_upon_signal row. The
// signal is consumed exactly once; it never repeats for this op-state.
func ScheduleUponSignal(l *loop.Loop, ctx context.Context, signum int) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &signalOnceState{l: l, r: r, signum: signum}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *signalOnceState) start(ctx context.Context) {
	st.node.Apply = st.arm
	st.l.Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.l.Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *signalOnceState) arm() {
	if st.IsClaimed() {
		return
	}
	watch, err := osx.NewSignalWatcher(st.signum)
	if err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	st.watch = watch
	if err := st.l.OS().Register(watch.FD(), osx.Readable, st.onSignal); err != nil {
		_ = watch.Close()
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
	}
}

func (st *signalOnceState) onSignal(osx.Events) {
	if !st.Claim() {
		return
	}
	err := st.watch.ConsumeOne()
	st.closeAndDeliver(func() {
		if err != nil {
			st.r.SetError(err)
			return
		}
		st.r.SetValue(Void{})
	})
}

func (st *signalOnceState) stopRequested() {
	if st.watch == nil {
		st.stop.Teardown()
		st.r.SetStopped()
		return
	}
	st.closeAndDeliver(st.r.SetStopped)
}

func (st *signalOnceState) closeAndDeliver(deliver func()) {
	st.stop.Teardown()
	_ = st.l.OS().Unregister(st.watch.FD())
	_ = st.watch.Close()
	deliver()
}
