package alg_test

import (
	"context"
	"encoding/binary"
	"fmt"
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

// echoValidator tracks the running byte offset of an echoed u32 stream
// across successive, possibly non-4-byte-aligned read chunks, spot-checking
// the value at every index divisible by 250 against the sequential values
// spec.md §8 scenario 5's client is known to send.
type echoValidator struct {
	carry     []byte
	nextIndex int
}

func (v *echoValidator) validate(chunk []byte) error {
	data := append(v.carry, chunk...)
	i := 0
	for i+4 <= len(data) {
		word := binary.LittleEndian.Uint32(data[i : i+4])
		if v.nextIndex%250 == 0 && word != uint32(v.nextIndex) {
			return fmt.Errorf("value at index %d = %d, want %d", v.nextIndex, word, v.nextIndex)
		}
		v.nextIndex++
		i += 4
	}
	v.carry = append([]byte(nil), data[i:]...)
	return nil
}

func serverEcho(conn *netx.Socket, ctx context.Context, totalBytes int) alg.Sender[alg.Void] {
	buf := make([]byte, 4096)
	validator := &echoValidator{}

	var step func(received int) alg.Sender[alg.Void]
	step = func(received int) alg.Sender[alg.Void] {
		if received >= totalBytes {
			return alg.Just(alg.Void{})
		}
		return domain.Then(alg.Receive(conn, ctx, buf), func(n int) alg.Sender[alg.Void] {
			if n == 0 {
				return alg.Fail[alg.Void](fmt.Errorf("server: connection closed early at %d/%d bytes", received, totalBytes))
			}
			if err := validator.validate(buf[:n]); err != nil {
				return alg.Fail[alg.Void](fmt.Errorf("server: %w", err))
			}
			echoed := append([]byte(nil), buf[:n]...)
			return domain.Then(alg.Send(conn, ctx, echoed), func(alg.Void) alg.Sender[alg.Void] {
				return step(received + n)
			})
		})
	}
	return step(0)
}

func clientReceiveAll(conn *netx.Socket, ctx context.Context, totalBytes int) alg.Sender[alg.Void] {
	buf := make([]byte, 4096)

	var step func(received int) alg.Sender[alg.Void]
	step = func(received int) alg.Sender[alg.Void] {
		if received >= totalBytes {
			if received != totalBytes {
				return alg.Fail[alg.Void](fmt.Errorf("client: received %d bytes, want exactly %d", received, totalBytes))
			}
			return alg.Just(alg.Void{})
		}
		return domain.Then(alg.Receive(conn, ctx, buf), func(n int) alg.Sender[alg.Void] {
			if n == 0 {
				return alg.Fail[alg.Void](fmt.Errorf("client: connection closed early at %d/%d bytes", received, totalBytes))
			}
			return step(received + n)
		})
	}
	return step(0)
}

// TestContinuousTransfer is spec.md §8 scenario 5: client streams 100,000
// consecutive u32 values (little-endian) in 4-byte-aligned chunks; server
// echoes. Expected: client receives exactly the number of bytes it sent,
// and every 4-byte boundary the server inspects at positions i%250==0 has
// the expected value.
func TestContinuousTransfer(t *testing.T) {
	const numValues = 100_000
	totalBytes := numValues * 4

	payload := make([]byte, totalBytes)
	for i := 0; i < numValues; i++ {
		binary.LittleEndian.PutUint32(payload[i*4:], uint32(i))
	}

	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	ep := netx.NewEndpoint(net.ParseIP("127.0.0.1"), 1331)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	var serverErr, clientErr error

	go func() {
		defer wg.Done()
		sender := alg.BindToListener(l, ep, 1, func(ls *netx.Listener) alg.Sender[alg.Void] {
			return alg.AcceptFrom(ls, ctx, func(conn *netx.Socket) alg.Sender[alg.Void] {
				return serverEcho(conn, ctx, totalBytes)
			})
		})
		_, _, serverErr = syncwait.Wait[alg.Void](l, sender)
	}()

	time.Sleep(10 * time.Millisecond)

	go func() {
		defer wg.Done()
		sender := alg.ConnectTo(l, ctx, ep, func(conn *netx.Socket) alg.Sender[alg.Void] {
			return domain.Then(alg.Send(conn, ctx, payload), func(alg.Void) alg.Sender[alg.Void] {
				return clientReceiveAll(conn, ctx, totalBytes)
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
}

// TestReadUntilMonotoneTotal exercises spec.md §8's quantified invariant
// directly: read_until's total is monotone non-decreasing across callbacks
// and never exceeds the bytes the OS actually delivered.
func TestReadUntilMonotoneTotal(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	ep := netx.NewEndpoint(net.ParseIP("127.0.0.1"), 1332)
	ctx := context.Background()
	const sent = 37

	var wg sync.WaitGroup
	wg.Add(2)
	var serverErr, clientErr error
	var totals []int

	go func() {
		defer wg.Done()
		sender := alg.BindToListener(l, ep, 1, func(ls *netx.Listener) alg.Sender[alg.Void] {
			return alg.AcceptFrom(ls, ctx, func(conn *netx.Socket) alg.Sender[alg.Void] {
				buf := make([]byte, sent)
				last := 0
				return domain.Then(alg.ReadUntil(conn, ctx, buf, func(lastRead int) bool {
					last += lastRead
					totals = append(totals, last)
					return last >= sent
				}), func(total int) alg.Sender[alg.Void] {
					if total != sent {
						return alg.Fail[alg.Void](fmt.Errorf("read_until total = %d, want %d", total, sent))
					}
					return alg.Just(alg.Void{})
				})
			})
		})
		_, _, serverErr = syncwait.Wait[alg.Void](l, sender)
	}()

	time.Sleep(10 * time.Millisecond)

	go func() {
		defer wg.Done()
		payload := make([]byte, sent)
		for i := range payload {
			payload[i] = byte(i)
		}
		sender := alg.ConnectTo(l, ctx, ep, func(conn *netx.Socket) alg.Sender[alg.Void] {
			return alg.Send(conn, ctx, payload)
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

	prev := 0
	for _, total := range totals {
		if total < prev {
			t.Fatalf("read_until total went backwards: %v", totals)
		}
		if total > sent {
			t.Fatalf("read_until total %d exceeded the %d bytes actually sent.", total, sent)
		}
		prev = total
	}
	if len(totals) == 0 || totals[len(totals)-1] != sent {
		t.Fatalf("read_until's final total = %v, want final entry %d", totals, sent)
	}
}
