package netx_test

import (
	stdnet "net"
	"testing"

	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/netx"
)

func TestNewEndpointFamilyDetection(t *testing.T) {
	t.Run("IPv4DottedQuadIsFamilyIPv4", func(t *testing.T) {
		ep := netx.NewEndpoint(stdnet.ParseIP("127.0.0.1"), 80)
		if ep.Family != netx.IPv4 {
			t.Fatalf("Family = %v, want IPv4", ep.Family)
		}
	})

	t.Run("IPv6LiteralIsFamilyIPv6", func(t *testing.T) {
		ep := netx.NewEndpoint(stdnet.ParseIP("::1"), 80)
		if ep.Family != netx.IPv6 {
			t.Fatalf("Family = %v, want IPv6", ep.Family)
		}
	})

	t.Run("AnyIPv4IsAllZeroesPortZero", func(t *testing.T) {
		ep := netx.AnyIPv4()
		if ep.Family != netx.IPv4 || ep.Port != 0 || !ep.IP.Equal(stdnet.IPv4zero) {
			t.Fatalf("AnyIPv4() = %+v, want {IPv4, 0.0.0.0, 0}", ep)
		}
	})
}

func TestSocketCheckFamilyRejectsMismatch(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	sock, err := netx.NewTCPSocket(l, netx.IPv4)
	if err != nil {
		t.Fatalf("NewTCPSocket: %v", err)
	}
	defer sock.Close()

	ep := netx.NewEndpoint(stdnet.ParseIP("::1"), 0)
	if err := sock.Bind(ep); err == nil {
		t.Fatal("Bind of an IPv6 endpoint onto an IPv4 socket succeeded, want an error")
	}
}

func TestSocketAdoptPanicsWhenAlreadyOwningAHandle(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	sock, err := netx.NewTCPSocket(l, netx.IPv4)
	if err != nil {
		t.Fatalf("NewTCPSocket: %v", err)
	}
	defer sock.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Adopt on a Socket that already owns a handle did not panic")
		}
	}()
	sock.Adopt(99)
}
