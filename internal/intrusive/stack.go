// Package intrusive provides O(1) queues and lists threaded through the
// operation objects themselves, and a lazy-construct helper for deferred
// in-place construction.
package intrusive

import "sync/atomic"

// Node is the intrusive link of an operation that can be submitted to a
// [Stack]. Op-states usually embed one; one-off submissions (a stop request,
// loop.ScheduleFunc) allocate a fresh Node instead.
//
// Apply is the operation's one virtual method (spec.md §3): it is invoked
// exactly once per submission, on the loop thread, by whatever drains the
// [Stack] this node was pushed onto. Op-states set it in their start step;
// the loop's drain clears it before invoking it.
type Node struct {
	next  *Node
	Apply func()
}

// Stack is a lock-free, multi-producer, single-consumer intrusive stack:
// producers push with release ordering; the single consumer steals the
// whole list with acquire ordering and reverses it in place so drained
// operations run in FIFO submission order.
//
// The zero value is an empty Stack.
type Stack struct {
	head atomic.Pointer[Node]
}

// Push adds n to the stack. Safe for concurrent use from any goroutine.
func (s *Stack) Push(n *Node) {
	for {
		old := s.head.Load()
		n.next = old
		if s.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Drain atomically steals the entire stack and returns its nodes in FIFO
// submission order (oldest push first). Must be called by the single
// consumer only.
func (s *Stack) Drain() []*Node {
	head := s.head.Swap(nil)
	if head == nil {
		return nil
	}

	var nodes []*Node
	for n := head; n != nil; {
		next := n.next
		n.next = nil
		nodes = append(nodes, n)
		n = next
	}

	// nodes is currently in LIFO (most-recent-push-first) order; reverse it.
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	return nodes
}

// Empty reports whether the stack currently has no pending nodes. It is
// advisory only under concurrent pushes.
func (s *Stack) Empty() bool {
	return s.head.Load() == nil
}
