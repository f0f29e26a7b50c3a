//go:build linux

package osx

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Family distinguishes the two endpoint kinds spec.md §3 names: IPv4 and
// IPv6. It determines the sockaddr shape and the socket() domain argument.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// NewStreamSocket creates a non-blocking TCP socket for fam.
func NewStreamSocket(fam Family) (int, error) {
	return newSocket(fam, unix.SOCK_STREAM)
}

// NewDatagramSocket creates a non-blocking UDP socket for fam.
func NewDatagramSocket(fam Family) (int, error) {
	return newSocket(fam, unix.SOCK_DGRAM)
}

func newSocket(fam Family, typ int) (int, error) {
	domain := unix.AF_INET
	if fam == IPv6 {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, typ|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("osx: socket: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

// SockaddrFor converts a net.IP+port into the unix.Sockaddr the raw syscalls
// need. Address *parsing* (string -> net.IP) is explicitly out of scope per
// spec.md §1; this only adapts an already-parsed net.IP.
func SockaddrFor(ip net.IP, port int) (unix.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		copy(sa.Addr[:], v4)
		sa.Port = port
		return &sa, nil
	}
	v6 := ip.To16()
	if v6 == nil {
		return nil, fmt.Errorf("osx: invalid IP %v", ip)
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], v6)
	sa.Port = port
	return &sa, nil
}

// FromSockaddr converts a raw unix.Sockaddr back into (net.IP, port).
func FromSockaddr(sa unix.Sockaddr) (net.IP, int, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return ip, v.Port, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return ip, v.Port, nil
	default:
		return nil, 0, fmt.Errorf("osx: unsupported sockaddr type %T", sa)
	}
}

// Bind binds fd to addr.
func Bind(fd int, addr unix.Sockaddr) error {
	return unix.Bind(fd, addr)
}

// Listen marks fd as a listening socket with the given backlog. backlog==0
// is substituted with SOMAXCONN, matching
// _examples/original_source/src/sockets/tcp_listener.cpp.
func Listen(fd int, backlog int) error {
	if backlog == 0 {
		backlog = unix.SOMAXCONN
	}
	return unix.Listen(fd, backlog)
}

// Accept4 accepts one pending connection as a non-blocking, close-on-exec
// fd, returning the raw peer sockaddr.
func Accept4(fd int) (int, unix.Sockaddr, error) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return nfd, sa, nil
}

// Connect issues a non-blocking connect(2). EINPROGRESS is not an error
// here; the caller waits for the fd to become writable.
func Connect(fd int, addr unix.Sockaddr) error {
	err := unix.Connect(fd, addr)
	if err == unix.EINPROGRESS {
		return nil
	}
	return err
}

// ConnectError reads SO_ERROR after a connect()'s fd becomes writable, to
// find out whether the connection actually succeeded.
func ConnectError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Read reads into buf, returning (n, err). err is unix.EAGAIN when no data
// is currently available; the caller re-arms Readable interest and waits.
func Read(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// Write writes buf, returning (n, err) with the same EAGAIN convention as
// Read.
func Write(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// SendTo/RecvFrom implement UDP's unconnected send_to/receive_from.
func SendTo(fd int, buf []byte, addr unix.Sockaddr) (int, error) {
	err := unix.Sendto(fd, buf, 0, addr)
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

func RecvFrom(fd int, buf []byte) (int, unix.Sockaddr, error) {
	n, _, _, sa, err := unix.Recvmsg(fd, buf, nil, 0)
	if err != nil {
		return 0, nil, err
	}
	return n, sa, nil
}

// Shutdown issues shutdown(2) with how in {SHUT_RD, SHUT_WR, SHUT_RDWR}.
func Shutdown(fd int, how int) error {
	return unix.Shutdown(fd, how)
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

const (
	ShutRD   = unix.SHUT_RD
	ShutWR   = unix.SHUT_WR
	ShutRDWR = unix.SHUT_RDWR
)
