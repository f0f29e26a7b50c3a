package intrusive_test

import (
	"sync"
	"testing"

	"github.com/relaypath/aioloop/internal/intrusive"
)

func TestStack(t *testing.T) {
	t.Run("DrainEmpty", func(t *testing.T) {
		var s intrusive.Stack

		if !s.Empty() {
			t.Fatal("a fresh Stack reported non-empty.")
		}
		if nodes := s.Drain(); nodes != nil {
			t.Fatalf("Drain on an empty Stack returned %d node(s), want nil.", len(nodes))
		}
	})

	t.Run("FIFOOrder", func(t *testing.T) {
		var s intrusive.Stack

		var order []int
		for i := 0; i < 5; i++ {
			i := i
			s.Push(&intrusive.Node{Apply: func() { order = append(order, i) }})
		}

		nodes := s.Drain()
		if len(nodes) != 5 {
			t.Fatalf("Drain returned %d node(s), want 5.", len(nodes))
		}
		for _, n := range nodes {
			n.Apply()
		}

		want := []int{0, 1, 2, 3, 4}
		for i, v := range want {
			if order[i] != v {
				t.Fatalf("Drain order = %v, want %v (oldest push first).", order, want)
			}
		}

		if !s.Empty() {
			t.Fatal("Stack reported non-empty after Drain stole every node.")
		}
	})

	t.Run("ConcurrentPush", func(t *testing.T) {
		var s intrusive.Stack

		const producers = 8
		const perProducer = 100

		var wg sync.WaitGroup
		wg.Add(producers)
		for p := 0; p < producers; p++ {
			go func() {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					s.Push(&intrusive.Node{Apply: func() {}})
				}
			}()
		}
		wg.Wait()

		nodes := s.Drain()
		if len(nodes) != producers*perProducer {
			t.Fatalf("Drain returned %d node(s), want %d.", len(nodes), producers*perProducer)
		}
	})
}
