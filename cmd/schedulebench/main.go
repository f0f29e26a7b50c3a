// Command schedulebench measures how long a batch of schedule(op) round
// trips takes on a single [loop.Loop] driven from the submitting goroutine,
// exercising spec.md §8's "for every schedule(op) call, op.apply() is
// invoked exactly once by some loop iteration" under load.
//
// Run with: go run ./cmd/schedulebench -n 100000
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/syncwait"
)

func main() {
	n := flag.Int("n", 100_000, "number of schedule round trips to run")
	flag.Parse()

	l, err := loop.New(loop.Options{Logger: slog.Default()})
	if err != nil {
		fmt.Fprintln(os.Stderr, "schedulebench: new loop:", err)
		os.Exit(1)
	}
	defer l.Close()

	start := time.Now()
	for i := 0; i < *n; i++ {
		if _, _, err := syncwait.Wait[alg.Void](l, alg.Schedule(l, nil)); err != nil {
			fmt.Fprintln(os.Stderr, "schedulebench: schedule round trip:", err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("%d round trips in %v (%.0f ns/op)\n", *n, elapsed, float64(elapsed.Nanoseconds())/float64(*n))
}
