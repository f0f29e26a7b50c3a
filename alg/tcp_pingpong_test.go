package alg_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/domain"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/netx"
	"github.com/relaypath/aioloop/syncwait"
)

// TestTCPPingPong is spec.md §8 scenario 2: server binds, accepts one
// connection, receives exactly 4 bytes ("Ping"), writes "Pong", closes;
// client connects, sends "Ping", receives "Pong". Both sides must complete
// without error, and the server must actually have observed "Ping".
func TestTCPPingPong(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	ep := netx.NewEndpoint(net.ParseIP("127.0.0.1"), 1329)
	ctx := context.Background()

	pingReceived := false

	var wg sync.WaitGroup
	wg.Add(2)

	var serverErr, clientErr error

	go func() {
		defer wg.Done()
		sender := alg.BindToListener(l, ep, 1, func(ls *netx.Listener) alg.Sender[alg.Void] {
			return alg.AcceptFrom(ls, ctx, func(conn *netx.Socket) alg.Sender[alg.Void] {
				buf := make([]byte, 4)
				return domain.Then(alg.Receive(conn, ctx, buf), func(n int) alg.Sender[alg.Void] {
					if string(buf[:n]) == "Ping" {
						pingReceived = true
					}
					return alg.Send(conn, ctx, []byte("Pong"))
				})
			})
		})
		_, _, serverErr = syncwait.Wait[alg.Void](l, sender)
	}()

	// Give the server a moment to reach Register/startListening before the
	// client dials. The listener only starts listening at its first accept
	// registration; a client that dials before that gets its connect error
	// delivered as-is, with no retry.
	time.Sleep(10 * time.Millisecond)

	go func() {
		defer wg.Done()
		sender := alg.ConnectTo(l, ctx, ep, func(conn *netx.Socket) alg.Sender[alg.Void] {
			return domain.Then(alg.Send(conn, ctx, []byte("Ping")), func(alg.Void) alg.Sender[alg.Void] {
				buf := make([]byte, 4)
				return domain.Then(alg.Receive(conn, ctx, buf), func(n int) alg.Sender[alg.Void] {
					if string(buf[:n]) != "Pong" {
						return alg.Fail[alg.Void](errMismatch("Pong", string(buf[:n])))
					}
					return alg.Just(alg.Void{})
				})
			})
		})
		_, _, clientErr = syncwait.Wait[alg.Void](l, sender)
	}()

	wg.Wait()

	if serverErr != nil {
		t.Fatalf("server: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client: %v", clientErr)
	}
	if !pingReceived {
		t.Fatal("server never observed \"Ping\".")
	}
}

type mismatchError struct{ want, got string }

func (e *mismatchError) Error() string {
	return "expected " + e.want + ", got " + e.got
}

func errMismatch(want, got string) error { return &mismatchError{want: want, got: got} }
