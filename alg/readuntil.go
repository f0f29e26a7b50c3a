package alg

import (
	"context"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/opstate"
)

// readUntilState implements spec.md §4.5: repeatedly read into the same
// buffer span until pred(bytesJustRead) reports true, an error occurs, or
// EOF is reached.
type readUntilState struct {
	opstate.Base
	sock  *netx.Socket
	buf   []byte
	pred  func(lastRead int) bool
	total int
	r     opstate.Receiver[int]
	stop  opstate.StopOp
	node  intrusive.Node
}

// ReadUntil reads into buf, calling pred after every read that yields at
// least one byte, until pred returns true or the stream ends. It completes
// with the total number of bytes accumulated across all reads.
func ReadUntil(sock *netx.Socket, ctx context.Context, buf []byte, pred func(lastRead int) bool) Sender[int] {
	return FromConnect(func(r opstate.Receiver[int]) OpState {
		st := &readUntilState{sock: sock, buf: buf, pred: pred, r: r}
		return fromStart(func() { st.start(ctx) })
	})
}

func (st *readUntilState) start(ctx context.Context) {
	st.node.Apply = st.tryRead
	st.sock.Loop().Schedule(&st.node)
	st.stop.Setup(&st.Base, ctx, func() {
		st.sock.Loop().Schedule(&intrusive.Node{Apply: st.stopRequested})
	})
}

func (st *readUntilState) tryRead() {
	if st.IsClaimed() {
		return
	}
	n, err := st.sock.Read(st.buf)
	switch {
	case err == nil:
		st.onReadResult(n)
	case isAgain(err):
		st.armReadable()
	default:
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
	}
}

// onReadResult implements spec.md §4.5 step 2. A read(2) returning 0 with
// no error is POSIX's end-of-stream signal (the peer performed an orderly
// shutdown); read_until treats it exactly like the explicit EOF case: stop
// reading and deliver the total accumulated so far, never a re-arm.
func (st *readUntilState) onReadResult(n int) {
	if n == 0 {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetValue(st.total)
		}
		return
	}
	st.total += n

	done, err := guardPredicate(st.pred, n)
	if err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
		return
	}
	if done {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetValue(st.total)
		}
		return
	}
	st.tryRead()
}

func (st *readUntilState) armReadable() {
	if err := st.sock.Loop().OS().Register(st.sock.FD(), osx.Readable, st.onReadable); err != nil {
		if st.Claim() {
			st.stop.Teardown()
			st.r.SetError(err)
		}
	}
}

func (st *readUntilState) onReadable(osx.Events) {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.tryRead()
}

func (st *readUntilState) stopRequested() {
	_ = st.sock.Loop().OS().Unregister(st.sock.FD())
	st.stop.Teardown()
	st.r.SetStopped()
}
