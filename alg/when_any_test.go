package alg_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaypath/aioloop/alg"
	"github.com/relaypath/aioloop/domain"
	"github.com/relaypath/aioloop/loop"
	"github.com/relaypath/aioloop/syncwait"
)

// TestWhenAnyTimers is spec.md §8 scenario 4: when_any(schedule_after(50ms),
// schedule_after(100ms)). Expected: first completes via value, second via
// stopped, total elapsed between 50ms and 100ms.
func TestWhenAnyTimers(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	sender := domain.WhenAny[alg.Void](context.Background(),
		func(ctx context.Context) alg.Sender[alg.Void] { return alg.ScheduleAfter(l, ctx, 50*time.Millisecond) },
		func(ctx context.Context) alg.Sender[alg.Void] { return alg.ScheduleAfter(l, ctx, 100*time.Millisecond) },
	)

	start := time.Now()
	_, ok, err := syncwait.Wait[alg.Void](l, sender)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("sync_wait returned an error: %v", err)
	}
	if !ok {
		t.Fatal("sync_wait reported stopped, want the faster timer's value completion.")
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("when_any completed after only %v, want >= 50ms.", elapsed)
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("when_any completed after %v, want well under the loser's 100ms.", elapsed)
	}
}

// TestWhenAnyNoBuildersNeverWinsARace matches Select's documented empty-argument
// behavior: a WhenAny with no candidates never completes. This is checked
// indirectly, via a competing timer racing it inside a second when_any
// rather than hanging the test forever.
func TestWhenAnyNoBuildersNeverWinsARace(t *testing.T) {
	l, err := loop.New(loop.Options{})
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()

	sender := domain.WhenAny[alg.Void](context.Background(),
		func(ctx context.Context) alg.Sender[alg.Void] {
			return domain.WhenAny[alg.Void](ctx)
		},
		func(ctx context.Context) alg.Sender[alg.Void] { return alg.ScheduleAfter(l, ctx, 10*time.Millisecond) },
	)

	_, ok, err := syncwait.Wait[alg.Void](l, sender)
	if err != nil {
		t.Fatalf("sync_wait returned an error: %v", err)
	}
	if !ok {
		t.Fatal("sync_wait reported stopped, want the timer branch's value completion.")
	}
}
