package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// connectState issues a non-blocking connect(2) and waits for the socket to
// become writable, per spec.md §6's connect row: endpoint in, () out, OS
// error on failure.
type connectState struct {
	opstate.Base
	sock *netx.Socket
	ep   netx.Endpoint
	r    opstate.Receiver[Void]
	stop opstate.StopOp
	node intrusive.Node
}

// Connect issues sock.Connect(ep) and completes once the connection is
// established or definitively fails.
func Connect(sock *netx.Socket, ctx context.Context, ep netx.Endpoint) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &connectState{sock: sock, ep: ep, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *connectState) start(ctx context.Context) {
	st.node.Apply = st.issue
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *connectState) issue() {
	if st.IsClaimed() {
		return
	}
	if err := st.sock.Connect(st.ep); err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if err := st.sock.Loop().OS().Register(st.sock.FD(), osx.Writable, st.onWritable); err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
	}
}

func (st *connectState) onWritable(osx.Events) {
	if !st.Claim() {
		return
	}
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	if err := st.sock.ConnectError(); err != nil {
		st.r.SetError(err)
		return
	}
	st.r.SetValue(Void{})
}

func (st *connectState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}
