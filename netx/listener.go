package netx

import (
	"syscall"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/loop"
)

// Acceptor is the intrusive queue entry for one pending accept op-state,
// per spec.md §3's "Acceptors list: Per-listener intrusive doubly-linked
// list of pending accept op-states."
//
// Package alg embeds an Acceptor in every accept op-state and calls
// [Listener.Register]/complete through the callbacks below rather than
// reaching into Listener's internals directly.
type Acceptor struct {
	node intrusive.ListNode
	// Complete is invoked (on the loop thread) with either a freshly
	// accepted client fd + peer endpoint, or an error, exactly once.
	Complete func(fd int, peer Endpoint, err error)
}

// Listener holds a bound, listening TCP socket plus the acceptor queue and
// PendingConnections counter spec.md §3/§4.6 describe.
type Listener struct {
	sock *Socket

	// PendingConnections encodes, per spec.md §3:
	//   >= 0: kernel-buffered connections beyond what any acceptor has
	//         claimed yet.
	//   <  0: negative backlog, AND listening has not started yet.
	pending int

	backlog    int
	listening  bool
	registered bool
	acceptors  intrusive.List
}

// NewListener creates a TCP listener socket bound to ep. It does not start
// listening yet — per spec.md §4.6, that happens lazily on the first
// accept registration, with PendingConnections initialized to -backlog.
func NewListener(l *loop.Loop, ep Endpoint, backlog int) (*Listener, error) {
	sock, err := NewTCPSocket(l, ep.Family)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(ep); err != nil {
		_ = sock.Close()
		return nil, err
	}
	if backlog <= 0 {
		backlog = 0 // resolved to SOMAXCONN by osx.Listen
	}
	return &Listener{sock: sock, pending: -backlog, backlog: backlog}, nil
}

// Socket exposes the underlying resource, e.g. for registering readability
// with the OS loop.
func (ls *Listener) Socket() *Socket { return ls.sock }

// Loop returns the owning loop, so package alg's close/drop adaptors can
// treat a Listener like any other resource they schedule work against.
func (ls *Listener) Loop() *loop.Loop { return ls.sock.Loop() }

// Close unregisters any outstanding OS readiness interest before closing
// the underlying listening socket, so a live epoll registration never
// outlives the fd it watches.
func (ls *Listener) Close() error {
	ls.unregisterIfIdle(true)
	return ls.sock.Close()
}

// startListening flips a not-yet-listening Listener into listening mode,
// per spec.md §4.6: "if PendingConnections < 0 (listening not started),
// start listening with backlog -PendingConnections and flip the sign to
// 0."
func (ls *Listener) startListening() error {
	backlog := -ls.pending
	if err := osx.Listen(ls.sock.fd, backlog); err != nil {
		return wrapErrno("listen", err)
	}
	ls.listening = true
	ls.pending = 0
	return nil
}

// Register attaches a new [Acceptor] to the listener, implementing spec.md
// §4.6's registration algorithm:
//
//	if PendingConnections > 0: consume one, complete immediately;
//	else enqueue; if PendingConnections < 0, start listening and flip sign;
//	if listen fails, synchronously deliver the error to that first acceptor.
func (ls *Listener) Register(a *Acceptor) {
	if ls.pending > 0 {
		ls.pending--
		ls.acceptOne(a)
		return
	}

	a.node.Value = a
	ls.acceptors.PushBack(&a.node)

	if !ls.listening {
		if err := ls.startListening(); err != nil {
			intrusive.Remove(&a.node)
			a.Complete(-1, Endpoint{}, err)
			return
		}
	}
	if err := ls.ensureRegistered(); err != nil {
		intrusive.Remove(&a.node)
		a.Complete(-1, Endpoint{}, err)
	}
}

// Unregister removes a not-yet-completed acceptor from the queue, used when
// an accept op-state is cancelled before the kernel hands it a connection.
func (ls *Listener) Unregister(a *Acceptor) {
	intrusive.Remove(&a.node)
	ls.unregisterIfIdle(false)
}

// ensureRegistered registers the listening socket for readability with the
// loop's epoll reactor the first time an acceptor is waiting, so
// OnConnectionReady actually gets called when a connection arrives.
func (ls *Listener) ensureRegistered() error {
	if ls.registered {
		return nil
	}
	if err := ls.sock.Loop().OS().Register(ls.sock.fd, osx.Readable, func(osx.Events) { ls.OnConnectionReady() }); err != nil {
		return wrapErrno("epoll_ctl", err)
	}
	ls.registered = true
	return nil
}

// unregisterIfIdle drops the listener's epoll registration once nothing is
// waiting to be told about it — or unconditionally, when force is true
// (the listener is closing and the fd is about to go away regardless).
func (ls *Listener) unregisterIfIdle(force bool) {
	if !ls.registered {
		return
	}
	if !force && !ls.acceptors.Empty() {
		return
	}
	_ = ls.sock.Loop().OS().Unregister(ls.sock.fd)
	ls.registered = false
}

// acceptOneAgain reports whether err is accept4's "no connection actually
// there yet" result: a spurious or duplicate level-triggered wakeup, not a
// real failure. The acceptor stays queued rather than being failed.
func acceptOneAgain(err error) bool {
	errno, ok := asErrno(err)
	return ok && (errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK)
}

func (ls *Listener) acceptOne(a *Acceptor) {
	fd, sa, err := osx.Accept4(ls.sock.fd)
	if err != nil {
		if acceptOneAgain(err) {
			a.node.Value = a
			ls.acceptors.PushBack(&a.node)
			_ = ls.ensureRegistered()
			return
		}
		a.Complete(-1, Endpoint{}, wrapErrno("accept", err))
		return
	}
	ip, port, cerr := osx.FromSockaddr(sa)
	if cerr != nil {
		_ = osx.Close(fd)
		a.Complete(-1, Endpoint{}, cerr)
		return
	}
	a.Complete(fd, NewEndpoint(ip, port), nil)
}

// OnConnectionReady is the epoll readability callback for the listening
// socket: spec.md §4.6's "Incoming connection callback: if no acceptor
// waits, increment PendingConnections; else pop the head and complete it."
//
// Level-triggered epoll may report readability for more than one buffered
// connection across separate wakeups; each call handles exactly one, which
// is why PendingConnections can grow past 1 when the kernel outruns
// consumers. Once the acceptor queue drains, the registration is dropped;
// Register re-arms it, and because readiness is level-triggered, any
// connection still sitting unconsumed in the backlog re-fires immediately.
func (ls *Listener) OnConnectionReady() {
	front := ls.acceptors.PopFront()
	if front == nil {
		ls.pending++
		return
	}
	ls.acceptOne(front.Value.(*Acceptor))
	ls.unregisterIfIdle(false)
}
