package alg

import (
	"context"
	"time"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/opstate"
)

// timedScheduleState realizes spec.md §4.3's state machine:
//
//	Fresh -> Armed -> (Fired | StopRequested) -> Closing -> Terminal
//
// Fresh enqueues onto the scheduled list; the loop-thread Apply moves to
// Armed by creating and arming the timerfd; the OS callback or the
// stop-callback race to claim the Base flag and drive the rest.
type timedScheduleState struct {
	opstate.Base
	l     *loop.Loop
	r     opstate.Receiver[Void]
	delay func() time.Duration // computed at Armed time, not at construction
	node  intrusive.Node
	stop  opstate.StopOp
	timer *osx.Timer
}

// ScheduleAfter completes with [Void] no earlier than d (clamped to >= 0)
// after start, per spec.md §6's schedule_after row.
func ScheduleAfter(l *loop.Loop, ctx context.Context, d time.Duration) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &timedScheduleState{l: l, r: r, delay: func() time.Duration { return d }}
		return fromStart(func() { st.start(ctx) })
	})
}

// ScheduleAt completes with [Void] no earlier than t, computed as
// max(t-now, 0) on the loop thread so the delay is measured against the
// loop's own monotonic clock (spec.md §4.3).
func ScheduleAt(l *loop.Loop, ctx context.Context, t time.Time) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &timedScheduleState{l: l, r: r, delay: func() time.Duration { return time.Until(t) }}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *timedScheduleState) armDelay() time.Duration {
	d := st.delay()
	if d < 0 {
		return 0
	}
	return d
}

func (st *timedScheduleState) start(ctx context.Context) {
	st.node.Apply = st.arm
	st.l.Schedule(&st.node)

	// Setup runs on the requesting goroutine, concurrently with the arm
	// step above landing on the loop thread; the flag arbitrates whichever
	// path (OS callback vs stop-callback) reaches completion first.
	st.stop.Setup(&st.Base, ctx, func() {
		st.l.Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

// arm moves Fresh -> Armed: create and register the timerfd.
func (st *timedScheduleState) arm() {
	if st.IsClaimed() {
		// A same-thread cancellation already completed this op-state
		// before Armed was reached; nothing to arm.
		return
	}
	timer, err := osx.NewTimer()
	if err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	st.timer = timer
	if err := st.l.OS().Register(timer.FD(), osx.Readable, st.onExpire); err != nil {
		_ = timer.Close()
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if err := timer.Arm(st.armDelay()); err != nil {
		st.closeAndDeliver(func() { st.r.SetError(err) })
	}
}

// onExpire is the OS timer callback: spec.md §4.3's "Fired" transition.
func (st *timedScheduleState) onExpire(osx.Events) {
	if !st.Claim() {
		return
	}
	st.timer.ConsumeExpiry()
	st.closeAndDeliver(func() { st.r.SetValue(Void{}) })
}

// stopRequested is the loop-thread cancellation op (spec.md §4.2 step 5):
// stop the timer, close it, then deliver set_stopped.
func (st *timedScheduleState) stopRequested() {
	if st.timer == nil {
		// Cancelled before Armed: no OS resource to stop, just deliver.
		st.stop.Teardown()
		st.r.SetStopped()
		return
	}
	_ = st.timer.Stop()
	st.closeAndDeliver(st.r.SetStopped)
}

func (st *timedScheduleState) closeAndDeliver(deliver func()) {
	st.stop.Teardown()
	_ = st.l.OS().Unregister(st.timer.FD())
	_ = st.timer.Close()
	deliver()
}
