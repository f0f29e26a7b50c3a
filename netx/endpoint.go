// Package netx provides the typed resource wrappers spec.md §3/§4.6
// describes under "Sockets / listeners / addresses": endpoints, sockets,
// and listeners, each binding exactly one OS handle to a [loop.Loop].
//
// Named netx, not net, to avoid shadowing the standard library net package
// that this module's address-parsing call sites still import directly —
// address parsing is explicitly out of scope (spec.md §1).
package netx

import (
	stdnet "net"
	"strconv"
)

// Family tags which wire format an [Endpoint] carries, mirroring spec.md
// §3's "Endpoint: A tagged variant of IPv4 and IPv6."
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Endpoint is an address+port pair tagged by [Family]. Listeners and
// sockets declare, via the Family they were constructed with, which
// Endpoint variant they accept; passing the other variant is rejected at
// construction (see [NewEndpoint]), the closest a dynamically-typed Go
// wrapper can get to spec.md's "compile-time error" for a mismatched
// Endpoint.
type Endpoint struct {
	Family Family
	IP     stdnet.IP
	Port   int
}

// NewEndpoint builds an Endpoint from an already-parsed IP (spec.md §1
// excludes address-parsing helpers from this module's scope: callers parse
// with stdnet.ParseIP themselves).
func NewEndpoint(ip stdnet.IP, port int) Endpoint {
	fam := IPv4
	if ip.To4() == nil {
		fam = IPv6
	}
	return Endpoint{Family: fam, IP: ip, Port: port}
}

// AnyIPv4 is "0.0.0.0:0", the default endpoint spec.md §6 names for
// implicit IPv4 socket construction in connect_to.
func AnyIPv4() Endpoint {
	return NewEndpoint(stdnet.IPv4zero, 0)
}

// AnyIPv6 is "[::]:0", the IPv6 counterpart of [AnyIPv4].
func AnyIPv6() Endpoint {
	return NewEndpoint(stdnet.IPv6zero, 0)
}

// String renders host:port.
func (e Endpoint) String() string {
	return stdnet.JoinHostPort(e.IP.String(), strconv.Itoa(e.Port))
}
