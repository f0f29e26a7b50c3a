// Package runner implements the thread coordination spec.md §4.1 calls
// "runner stealing": which goroutine currently drives the event loop, and
// how ownership hands off between goroutines that are all blocked in
// sync_wait at once.
package runner

import (
	"sync"

	"github.com/eapache/queue"
)

// Runner is a per-goroutine parking token. A goroutine that wants to drive
// the loop, or that is waiting for another goroutine's drive to make
// progress, owns exactly one Runner for the duration of that wait.
type Runner struct {
	ch      chan struct{}
	driving bool
}

// NewRunner creates a parked-but-not-yet-waiting Runner.
func NewRunner() *Runner {
	return &Runner{ch: make(chan struct{}, 1)}
}

// IsDriving reports whether r currently owns the driver slot. Safe to call
// after Wait returns: the happens-before edge of the channel send that woke
// r makes the write visible.
func (r *Runner) IsDriving() bool { return r.driving }

// Queue coordinates the single "who drives the loop" slot plus a FIFO of
// parked Runners, realizing spec.md §4.1's "Protocol: ... else park on the
// mutex's queue ... wakes the next parked runner so progress is handed off,
// never lost."
//
// The parked-runner backlog is kept in a github.com/eapache/queue ring
// buffer (sourced from the momentics-hioload-ws dependency list — see
// SPEC_FULL.md §4.1) rather than a slice, avoiding the repeated
// re-slicing/compaction a naive slice-as-FIFO would otherwise need under
// heavy runner-stealing contention.
type Queue struct {
	mu      sync.Mutex
	driver  *Runner
	waiting *queue.Queue
}

// NewQueue creates an empty runner Queue.
func NewQueue() *Queue {
	return &Queue{waiting: queue.New()}
}

// TryBecomeDriver attempts to claim the "currently running the loop" slot
// for r. On success the caller must eventually call Release. On failure, r
// has been enqueued to be woken later; the caller should block on
// r.Wait().
func (q *Queue) TryBecomeDriver(r *Runner) (became bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.driver == nil {
		q.driver = r
		r.driving = true
		return true
	}

	q.waiting.Add(r)
	return false
}

// Wait blocks until r is woken. Only [Queue.Release] wakes a parked
// Runner, and it does so by handing it the driver slot.
func (r *Runner) Wait() {
	<-r.ch
}

func (r *Runner) wake() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// Release gives up the driver slot (the caller must currently hold it) and
// wakes the next parked Runner, if any, handing it the driver slot.
func (q *Queue) Release() {
	q.mu.Lock()
	var next *Runner
	if q.waiting.Length() > 0 {
		next = q.waiting.Remove().(*Runner)
		next.driving = true
	}
	q.driver = next
	q.mu.Unlock()

	if next != nil {
		next.wake()
	}
}
