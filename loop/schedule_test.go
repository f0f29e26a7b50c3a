package loop_test

import (
	"testing"
	"time"

	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/syncwait"
)

// TestScheduleTrivial is spec.md §8 scenario 1: one loop, one schedule
// sender, synced via sync_wait on the submitting thread. sync_wait drives
// the loop itself when nobody else is driving it, so the inner completion
// necessarily runs on the same goroutine that called sync_wait; the
// assertion that matters is that it returns a value, not stopped or error.
func TestScheduleTrivial(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	_, ok, err := syncwait.Wait[alg.Void](l, alg.Schedule(l, nil))
	if err != nil {
		t.Fatalf("sync_wait returned an error: %v", err)
	}
	if !ok {
		t.Fatal("sync_wait reported stopped, want a value completion.")
	}
}

// TestScheduleAppliesExactlyOnce is spec.md §8's quantified invariant "for
// every schedule(op) call, op.apply() is invoked exactly once by some loop
// iteration."
func TestScheduleAppliesExactlyOnce(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	applied := 0
	done := make(chan struct{})
	l.ScheduleFunc(func() {
		applied++
		close(done)
	})

	go l.Run(loop.RunOnce)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled op never applied.")
	}

	if applied != 1 {
		t.Fatalf("op.Apply ran %d time(s), want exactly 1.", applied)
	}
}

// TestScheduleOrderingWithinSameThread is spec.md §8's "for two operations A
// then B submitted from the same thread without interleaved loop
// iterations, A.apply happens-before B.apply."
func TestScheduleOrderingWithinSameThread(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	var order []int
	done := make(chan struct{})

	l.ScheduleFunc(func() { order = append(order, 1) })
	l.ScheduleFunc(func() { order = append(order, 2) })
	l.ScheduleFunc(func() {
		order = append(order, 3)
		close(done)
	})

	go l.Run(loop.RunDrain)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled ops never applied.")
	}

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("apply order = %v, want %v.", order, want)
	}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("apply order = %v, want %v.", order, want)
		}
	}
}
