package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// acceptState registers an [netx.Acceptor] on a listener and adopts the
// resulting fd into into, per spec.md §6's accept row ("listener, socket"
// in, () out) and §4.6's registration algorithm.
type acceptState struct {
	opstate.Base
	ls   *netx.Listener
	into *netx.Socket
	r    opstate.Receiver[Void]
	stop opstate.StopOp
	node intrusive.Node
	acc  netx.Acceptor
}

// Accept registers into to receive the next connection ls hands out. into
// must not already own a handle (see [netx.Socket.Adopt]).
func Accept(ls *netx.Listener, into *netx.Socket, ctx context.Context) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &acceptState{ls: ls, into: into, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *acceptState) start(ctx context.Context) {
	st.node.Apply = st.register
	st.into.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.into.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *acceptState) register() {
	if st.IsClaimed() {
		return
	}
	st.acc.Complete = st.onComplete
	st.ls.Register(&st.acc)
}

func (st *acceptState) onComplete(fd int, _ netx.Endpoint, err error) {
	if !st.Claim() {
		if fd >= 0 {
			// Lost the race to a cancellation; the accepted fd has no
			// owner and must not leak.
			_ = closeFD(fd)
		}
		return
	}
	st.stop.Teardown()
	if err != nil {
		st.r.SetError(err)
		return
	}
	st.into.Adopt(fd)
	st.r.SetValue(Void{})
}

func (st *acceptState) stopRequested() {
	st.ls.Unregister(&st.acc)
	st.stop.Teardown()
	st.r.SetStopped()
}
