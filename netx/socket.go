package netx

import (
	"fmt"

	"github.com/relaypath/aioloop/errs"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/loop"
)

func familyOf(fam Family) osx.Family {
	if fam == IPv6 {
		return osx.IPv6
	}
	return osx.IPv4
}

// Socket owns exactly one OS handle plus a reference to the [loop.Loop] it
// is bound to (spec.md §3's Resource invariant). It is constructed either
// eagerly, via [NewTCPSocket]/[NewUDPSocket] (used when the caller already
// holds the loop), or lazily inside the alg.ConnectTo/AcceptFrom adaptors,
// which own the resource for exactly the lifetime of their subexpression.
type Socket struct {
	l    *loop.Loop
	fd   int
	fam  Family
	kind sockKind
}

type sockKind int

const (
	kindTCP sockKind = iota
	kindUDP
)

// NewTCPSocket eagerly creates a non-blocking TCP socket bound to l.
func NewTCPSocket(l *loop.Loop, fam Family) (*Socket, error) {
	fd, err := osx.NewStreamSocket(familyOf(fam))
	if err != nil {
		return nil, wrapErrno("socket", err)
	}
	return &Socket{l: l, fd: fd, fam: fam, kind: kindTCP}, nil
}

// NewUDPSocket eagerly creates a non-blocking UDP socket bound to l.
func NewUDPSocket(l *loop.Loop, fam Family) (*Socket, error) {
	fd, err := osx.NewDatagramSocket(familyOf(fam))
	if err != nil {
		return nil, wrapErrno("socket", err)
	}
	return &Socket{l: l, fd: fd, fam: fam, kind: kindUDP}, nil
}

// FD returns the raw file descriptor, for use by package alg's op-states.
func (s *Socket) FD() int { return s.fd }

// Adopt installs an already-accepted fd into an existing, otherwise-unused
// Socket value. This is the out-parameter half of spec.md §9's open
// question (a): package alg's accept operation lifts a raw fd into a
// caller-supplied Socket rather than constructing one itself, the
// counterpart to accept_from's eager construction.
func (s *Socket) Adopt(fd int) {
	if s.fd >= 0 {
		panic("netx: Adopt called on a Socket that already owns a handle")
	}
	s.fd = fd
}

// NewUnboundTCPSocket allocates a Socket value with no handle yet, for use
// with [Socket.Adopt].
func NewUnboundTCPSocket(l *loop.Loop, fam Family) *Socket {
	return &Socket{l: l, fd: -1, fam: fam, kind: kindTCP}
}

// Loop returns the owning loop.
func (s *Socket) Loop() *loop.Loop { return s.l }

// Family reports which Endpoint variant this socket accepts.
func (s *Socket) Family() Family { return s.fam }

// Bind binds the socket to ep. UDP sockets and (indirectly, via
// [Listener]) TCP listening sockets use this; a plain client TCP socket
// usually does not need it.
func (s *Socket) Bind(ep Endpoint) error {
	if err := s.checkFamily(ep); err != nil {
		return err
	}
	sa, err := osx.SockaddrFor(ep.IP, ep.Port)
	if err != nil {
		return wrapErrno("bind", err)
	}
	if err := osx.Bind(s.fd, sa); err != nil {
		return wrapErrno("bind", err)
	}
	return nil
}

func (s *Socket) checkFamily(ep Endpoint) error {
	if ep.Family != s.fam {
		return fmt.Errorf("netx: endpoint family %v does not match socket family %v", ep.Family, s.fam)
	}
	return nil
}

// Close closes the underlying handle. Per spec.md §5, closing an op-state's
// resource is asynchronous everywhere except here: this is the raw,
// synchronous primitive; algorithm adaptors compose the async alg.Close
// sender around it so a resource is never destroyed before its close
// callback has run.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := osx.Close(s.fd)
	s.fd = -1
	if err != nil {
		return wrapErrno("close", err)
	}
	return nil
}

func wrapErrno(op string, err error) error {
	if errno, ok := asErrno(err); ok {
		return errs.FromErrno(op, errno)
	}
	return fmt.Errorf("netx: %s: %w", op, err)
}
