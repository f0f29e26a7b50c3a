package opstate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relaypath/aioloop/opstate"
)

func TestBaseClaim(t *testing.T) {
	t.Run("FirstClaimWins", func(t *testing.T) {
		var b opstate.Base

		if b.IsClaimed() {
			t.Fatal("a fresh Base reports IsClaimed() = true.")
		}
		if !b.Claim() {
			t.Fatal("the first Claim() on a fresh Base should succeed.")
		}
		if !b.IsClaimed() {
			t.Fatal("IsClaimed() = false immediately after a successful Claim().")
		}
		if b.Claim() {
			t.Fatal("a second Claim() on an already-claimed Base should fail.")
		}
	})

	t.Run("ExactlyOneWinnerUnderRace", func(t *testing.T) {
		var b opstate.Base

		const racers = 64
		var wg sync.WaitGroup
		wins := make([]bool, racers)
		wg.Add(racers)
		for i := 0; i < racers; i++ {
			i := i
			go func() {
				defer wg.Done()
				wins[i] = b.Claim()
			}()
		}
		wg.Wait()

		won := 0
		for _, w := range wins {
			if w {
				won++
			}
		}
		if won != 1 {
			t.Fatalf("%d goroutine(s) won the Claim() race, want exactly 1.", won)
		}
	})
}

func TestStopOp(t *testing.T) {
	t.Run("NilContextNeverCancels", func(t *testing.T) {
		var base opstate.Base
		var stop opstate.StopOp

		called := false
		stop.Setup(&base, nil, func() { called = true })
		stop.Teardown()

		if called {
			t.Fatal("Setup with a nil context invoked schedule().")
		}
	})

	t.Run("CancelBeforeTeardownClaimsAndSchedules", func(t *testing.T) {
		var base opstate.Base
		var stop opstate.StopOp

		ctx, cancel := context.WithCancel(context.Background())

		scheduled := make(chan struct{})
		stop.Setup(&base, ctx, func() { close(scheduled) })

		cancel()

		select {
		case <-scheduled:
		case <-time.After(time.Second):
			t.Fatal("schedule() was never invoked after cancel().")
		}

		if !base.IsClaimed() {
			t.Fatal("Base should be claimed once the stop-callback wins the race.")
		}
	})

	t.Run("TeardownAfterNormalCompletionPreventsLateCancel", func(t *testing.T) {
		var base opstate.Base
		var stop opstate.StopOp

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		called := false
		stop.Setup(&base, ctx, func() { called = true })

		if !base.Claim() {
			t.Fatal("the normal-completion path should win Claim() when it runs first.")
		}
		stop.Teardown()

		cancel()
		if called {
			t.Fatal("schedule() ran after Teardown unregistered the cancellation callback.")
		}
	})
}

