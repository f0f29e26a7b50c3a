// Command pingpong drives both the TCP and UDP ping-pong exchanges of
// spec.md §8 scenarios 2 and 6 against one [loop.Loop], each leg running
// in its own goroutine and sync_wait-ing cooperatively.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/relaypath/aioloop/examples/pingpong"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/netx"
)

func main() {
	l, err := loop.New(loop.Options{Logger: slog.Default()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "pingpong: new loop:", err)
		os.Exit(1)
	}
	defer l.Close()

	tcpEP := netx.NewEndpoint(net.ParseIP("127.0.0.1"), 1329)
	udpEP := netx.NewEndpoint(net.ParseIP("127.0.0.1"), 1330)

	var wg sync.WaitGroup
	wg.Add(4)

	run := func(name string, f func() error) {
		defer wg.Done()
		if err := f(); err != nil {
			fmt.Fprintf(os.Stderr, "pingpong: %s: %v\n", name, err)
		}
	}

	go run("tcp-server", func() error { return pingpong.RunTCPServer(l, tcpEP) })
	go run("tcp-client", func() error { return pingpong.RunTCPClient(l, tcpEP) })
	go run("udp-server", func() error { return pingpong.RunUDPServer(l, udpEP) })
	go run("udp-client", func() error { return pingpong.RunUDPClient(l, udpEP) })

	wg.Wait()
}
