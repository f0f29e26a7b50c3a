package netx

import "github.com/relaypath/aioloop/internal/osx"

// SendTo issues one unconnected UDP datagram, per spec.md §4.7's
// send_to/receive_from pair for sockets not bound to a fixed peer via
// connect_to.
func (s *Socket) SendTo(buf []byte, to Endpoint) (int, error) {
	if err := s.checkFamily(to); err != nil {
		return 0, err
	}
	sa, err := osx.SockaddrFor(to.IP, to.Port)
	if err != nil {
		return 0, wrapErrno("sendto", err)
	}
	n, err := osx.SendTo(s.fd, buf, sa)
	if err != nil {
		return n, wrapErrno("sendto", err)
	}
	return n, nil
}

// RecvFrom reads one unconnected UDP datagram, returning the sender's
// endpoint alongside the payload length.
func (s *Socket) RecvFrom(buf []byte) (int, Endpoint, error) {
	n, sa, err := osx.RecvFrom(s.fd, buf)
	if err != nil {
		return n, Endpoint{}, wrapErrno("recvfrom", err)
	}
	ip, port, cerr := osx.FromSockaddr(sa)
	if cerr != nil {
		return n, Endpoint{}, cerr
	}
	return n, NewEndpoint(ip, port), nil
}

// Read reads from the socket's current fd, valid for both a connected TCP
// stream and a connect_to'd UDP socket (spec.md §4.7's "connected mode").
func (s *Socket) Read(buf []byte) (int, error) {
	n, err := osx.Read(s.fd, buf)
	if err != nil {
		return n, wrapErrno("read", err)
	}
	return n, nil
}

// Write writes to the socket's current fd.
func (s *Socket) Write(buf []byte) (int, error) {
	n, err := osx.Write(s.fd, buf)
	if err != nil {
		return n, wrapErrno("write", err)
	}
	return n, nil
}

// Connect issues a non-blocking connect(2) to ep, for both a TCP client
// socket and a UDP socket opting into connected mode.
func (s *Socket) Connect(ep Endpoint) error {
	if err := s.checkFamily(ep); err != nil {
		return err
	}
	sa, err := osx.SockaddrFor(ep.IP, ep.Port)
	if err != nil {
		return wrapErrno("connect", err)
	}
	if err := osx.Connect(s.fd, sa); err != nil {
		return wrapErrno("connect", err)
	}
	return nil
}

// ConnectError reads SO_ERROR once the connecting socket becomes writable.
func (s *Socket) ConnectError() error {
	if err := osx.ConnectError(s.fd); err != nil {
		return wrapErrno("connect", err)
	}
	return nil
}

// Shutdown issues shutdown(2) with how in {ShutRD, ShutWR, ShutRDWR}.
func (s *Socket) Shutdown(how int) error {
	if err := osx.Shutdown(s.fd, how); err != nil {
		return wrapErrno("shutdown", err)
	}
	return nil
}
