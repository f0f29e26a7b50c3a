package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// ReceiveFromResult is receive_from's value: the bytes read plus the
// datagram's sender, per spec.md §8 scenario 6 ("receive_from yields
// (n=4, peer)").
type ReceiveFromResult struct {
	N    int
	Peer netx.Endpoint
}

// ---- send: write buf in full, retrying on partial writes/EAGAIN ----

type sendState struct {
	opstate.Base
	sock *netx.Socket
	buf  []byte
	off  int
	r    opstate.Receiver[Void]
	stop opstate.StopOp
	node intrusive.Node
}

// Send writes the entirety of buf to sock's connected peer.
func Send(sock *netx.Socket, ctx context.Context, buf []byte) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &sendState{sock: sock, buf: buf, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *sendState) start(ctx context.Context) {
	st.node.Apply = st.tryWrite
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *sendState) tryWrite() {
	if st.IsClaimed() {
		return
	}
	for st.off < len(st.buf) {
		n, err := st.sock.Write(st.buf[st.off:])
		if err != nil {
			if isAgain(err) {
				st.armWritable()
				return
			}
			if st.Claim() {
				st.stop.Teardown()
				st.r.SetError(err)
			}
			return
		}
		st.off += n
	}
	if st.Claim() {
		st.stop.Teardown()
		st.r.SetValue(Void{})
	}
}

func (st *sendState) armWritable() {
	if err := st.sock.Loop().OS().Register(st.sock.FD(), osx.Writable, st.onWritable); err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
	}
}

func (st *sendState) onWritable(osx.Events) {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.tryWrite()
}

func (st *sendState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}

// ---- send_to: one atomic datagram write, no partial-write retry ----

type sendToState struct {
	sock *netx.Socket
	buf  []byte
	to   netx.Endpoint
	r    opstate.Receiver[Void]
	node intrusive.Node
}

// SendTo writes buf as one UDP datagram addressed to to.
func SendTo(sock *netx.Socket, buf []byte, to netx.Endpoint) Sender[Void] {
	return FromConnect(func(r opstate.Receiver[Void]) OpState {
		st := &sendToState{sock: sock, buf: buf, to: to, r: r}
		return fromStart(st.start)
	})
}

func (st *sendToState) start() {
	st.node.Apply = func() {
		if _, err := st.sock.SendTo(st.buf, st.to); err != nil {
			st.r.SetError(err)
			return
		}
		st.r.SetValue(Void{})
	}
	st.sock.Loop().Schedule(&st.node)
}

// ---- receive / read_some: one partial read, waits for readability ----

type receiveState struct {
	opstate.Base
	sock *netx.Socket
	buf  []byte
	r    opstate.Receiver[int]
	stop opstate.StopOp
	node intrusive.Node
}

// Receive (and its read_some alias) performs one partial read into buf,
// returning the number of bytes read.
func Receive(sock *netx.Socket, ctx context.Context, buf []byte) Sender[int] {
	return FromConnect(func(r opstate.Receiver[int]) OpState {
		st := &receiveState{sock: sock, buf: buf, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

// ReadSome is an alias for [Receive] under the name spec.md §6 uses for the
// generic stream-reading operation.
func ReadSome(sock *netx.Socket, ctx context.Context, buf []byte) Sender[int] {
	return Receive(sock, ctx, buf)
}

func (st *receiveState) start(ctx context.Context) {
	st.node.Apply = st.tryRead
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *receiveState) tryRead() {
	if st.IsClaimed() {
		return
	}
	n, err := st.sock.Read(st.buf)
	if err != nil {
		if isAgain(err) {
			if regErr := st.sock.Loop().OS().Register(st.sock.FD(), osx.Readable, st.onReadable); regErr != nil {
				if st.Claim() {
					st.stop.Teardown()
					st.r.SetError(regErr)
				}
			}
			return
		}
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if st.Claim() {
		st.stop.Teardown()
		st.r.SetValue(n)
	}
}

func (st *receiveState) onReadable(osx.Events) {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.tryRead()
}

func (st *receiveState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}

// ---- receive_from: one datagram read, yields (n, peer) ----

type receiveFromState struct {
	opstate.Base
	sock *netx.Socket
	buf  []byte
	r    opstate.Receiver[ReceiveFromResult]
	stop opstate.StopOp
	node intrusive.Node
}

// ReceiveFrom reads one UDP datagram into buf and reports its sender.
//
// Per spec.md §9's open question (b), calling this on a connected UDP
// socket is not exercised here and is left to match whatever the OS itself
// does (typically ECONNREFUSED-class errors on a subsequent unrelated
// datagram) rather than being special-cased.
func ReceiveFrom(sock *netx.Socket, ctx context.Context, buf []byte) Sender[ReceiveFromResult] {
	return FromConnect(func(r opstate.Receiver[ReceiveFromResult]) OpState {
		st := &receiveFromState{sock: sock, buf: buf, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *receiveFromState) start(ctx context.Context) {
	st.node.Apply = st.tryRead
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *receiveFromState) tryRead() {
	if st.IsClaimed() {
		return
	}
	n, peer, err := st.sock.RecvFrom(st.buf)
	if err != nil {
		if isAgain(err) {
			if regErr := st.sock.Loop().OS().Register(st.sock.FD(), osx.Readable, st.onReadable); regErr != nil {
				if st.Claim() {
					st.stop.Teardown()
					st.r.SetError(regErr)
				}
			}
			return
		}
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if st.Claim() {
		st.stop.Teardown()
		st.r.SetValue(ReceiveFromResult{N: n, Peer: peer})
	}
}

func (st *receiveFromState) onReadable(osx.Events) {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.tryRead()
}

func (st *receiveFromState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}

// ---- write_some: one partial write attempt ----

type writeSomeState struct {
	opstate.Base
	sock *netx.Socket
	buf  []byte
	r    opstate.Receiver[int]
	stop opstate.StopOp
	node intrusive.Node
}

// WriteSome performs one partial write, returning the number of bytes
// accepted by the kernel.
func WriteSome(sock *netx.Socket, ctx context.Context, buf []byte) Sender[int] {
	return FromConnect(func(r opstate.Receiver[int]) OpState {
		st := &writeSomeState{sock: sock, buf: buf, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *writeSomeState) start(ctx context.Context) {
	st.node.Apply = st.tryWrite
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *writeSomeState) tryWrite() {
	if st.IsClaimed() {
		return
	}
	n, err := st.sock.Write(st.buf)
	if err != nil {
		if isAgain(err) {
			if regErr := st.sock.Loop().OS().Register(st.sock.FD(), osx.Writable, st.onWritable); regErr != nil {
				if st.Claim() {
					st.stop.Teardown()
					st.r.SetError(regErr)
				}
			}
			return
		}
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if st.Claim() {
		st.stop.Teardown()
		st.r.SetValue(n)
	}
}

func (st *writeSomeState) onWritable(osx.Events) {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.tryWrite()
}

func (st *writeSomeState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}
