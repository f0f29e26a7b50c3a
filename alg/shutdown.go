package alg

import (
	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// Shutdown issues shutdown(2) on sock's current handle. Per spec.md §6 it
// carries no cancellation of its own worth mentioning (the syscall itself
// is synchronous); it is still lowered onto the loop thread for the same
// reason every other op-state is: sock must only ever be touched there.
type shutdownState struct {
	sock *netx.Socket
	how  int
	r    opstate.Receiver[Void]
	node intrusive.Node
}

// Shutdown builds a sender around sock.Shutdown(how).
func Shutdown(sock *netx.Socket, how int) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &shutdownState{sock: sock, how: how, r: r}
		return fromStart(st.start)
	})
}

func (st *shutdownState) start() {
	st.node.Apply = func() {
		if err := st.sock.Shutdown(st.how); err != nil {
			st.r.SetError(err)
			return
		}
		st.r.SetValue(Void{})
	}
	st.sock.Loop().Schedule(&st.node)
}

// Closer is satisfied by every resource type package alg's close/drop
// adaptors can schedule work against: a socket, or a listener, or anything
// else that owns exactly one OS handle on a [loop.Loop].
type Closer interface {
	Close() error
	Loop() *loop.Loop
}

// closeState issues the resource's synchronous Close on the loop thread and
// completes with Void, forming the "drop" tag spec.md §9 describes: every
// resource adaptor composes its body with then(drop(res)) so destruction is
// part of the dataflow.
type closeState struct {
	res  Closer
	r    opstate.Receiver[Void]
	node intrusive.Node
}

// Close builds the drop sender for a socket or listener's underlying
// handle.
func Close(res Closer) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &closeState{res: res, r: r}
		return fromStart(st.start)
	})
}

func (st *closeState) start() {
	st.node.Apply = func() {
		if err := st.res.Close(); err != nil {
			st.r.SetError(err)
			return
		}
		st.r.SetValue(Void{})
	}
	st.res.Loop().Schedule(&st.node)
}

// CloseListener is Close's counterpart for a listener's socket, routed
// through [netx.Listener.Close] so its epoll registration is torn down
// along with the fd.
func CloseListener(ls *netx.Listener) Sender[Void] {
	return Close(ls)
}
