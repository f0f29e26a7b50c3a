// Package loop implements the event loop of spec.md §4.1: it owns one OS
// loop, one self-wake async handle, one lock-free scheduled list, and the
// runner-stealing protocol that lets many goroutines concurrently submit
// work to, or synchronously wait on, a single-threaded reactor.
package loop

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/relaypath/aioloop/internal/intrusive"
	"github.com/relaypath/aioloop/internal/osx"
	"github.com/relaypath/aioloop/internal/runner"
)

// Options configures a [Loop]. The zero value is valid and uses defaults.
type Options struct {
	// EpollEvents bounds how many ready events are drained per epoll_wait.
	// Zero selects a default.
	EpollEvents int

	// Logger receives structured diagnostics: a Warn when a poll iteration
	// fails or when closing the OS loop fails. Defaults to
	// slog.Default(), grounded on the attribute style in
	// _examples/bassosimone-nop/connect.go.
	Logger *slog.Logger
}

// Loop is the single-threaded reactor described by spec.md §3/§4.1.
//
// A Loop is constructed once and must be closed exactly once. Submission
// ([Loop.Schedule]) is safe from any goroutine; every other exported method
// that touches OS state is only safe from the goroutine currently driving
// the loop (see [Loop.Run] family), except where documented otherwise.
type Loop struct {
	os      *osx.OSLoop
	async   *osx.Async
	sched   intrusive.Stack
	runners *runner.Queue
	log     *slog.Logger

	// finish is a loop-thread-local flag: "return from Run after the
	// current iteration completes" (spec.md §4.1's Finish semantics). It
	// is only ever mutated from the loop thread; cross-thread stoppage
	// goes through Schedule of an operation that calls RequestFinish.
	finish bool
}

// New constructs a Loop: it initializes the OS loop, installs the self-wake
// async handle, and registers it with the reactor.
func New(opts Options) (*Loop, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	osl, err := osx.NewOSLoop(opts.EpollEvents)
	if err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}

	async, err := osx.NewAsync()
	if err != nil {
		_ = osl.Close()
		return nil, fmt.Errorf("loop: %w", err)
	}

	l := &Loop{
		os:      osl,
		async:   async,
		runners: runner.NewQueue(),
		log:     opts.Logger,
	}

	if err := osl.Register(async.FD(), osx.Readable, func(osx.Events) {
		async.Drain()
		l.drain()
	}); err != nil {
		_ = async.Close()
		_ = osl.Close()
		return nil, fmt.Errorf("loop: %w", err)
	}

	return l, nil
}

// OS returns the underlying epoll reactor, for use by package alg/netx when
// registering I/O sources. Only safe from the loop thread.
func (l *Loop) OS() *osx.OSLoop { return l.os }

// Now returns time.Now(), read afresh on each call; the result carries Go's
// monotonic clock reading. It is not cached per iteration and its
// resolution is not reduced to milliseconds.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Schedule pushes op onto the scheduled list and wakes the loop. Callable
// from any goroutine.
//
// Operations submitted from the loop thread during another operation's
// Apply land here too, and are drained on the *next* iteration, never the
// current one — spec.md §4.1's fairness guarantee.
func (l *Loop) Schedule(op *intrusive.Node) {
	l.sched.Push(op)
	l.async.Send()
}

// ScheduleFunc is a convenience wrapper for one-off submissions that don't
// need a persistent op-state.
func (l *Loop) ScheduleFunc(f func()) {
	l.Schedule(&intrusive.Node{Apply: f})
}

func (l *Loop) drain() {
	for _, n := range l.sched.Drain() {
		apply := n.Apply
		n.Apply = nil
		if apply != nil {
			apply()
		}
	}
}

// RequestFinish is the loop-thread-local instruction "return from Run after
// the current iteration completes" (spec.md §4.1's Finish). Calling it from
// any other goroutine is a bug; use Schedule to hop onto the loop thread
// first.
func (l *Loop) RequestFinish() {
	l.finish = true
}

// runOnce drives exactly one epoll_wait/dispatch cycle. timeoutMs follows
// epoll_wait's convention: negative blocks, zero polls, positive bounds the
// wait.
func (l *Loop) runOnce(timeoutMs int) error {
	return l.os.Poll(timeoutMs)
}

// RunMode selects how long Run keeps driving the reactor.
type RunMode int

const (
	// RunDefault drives the loop until RequestFinish is called from
	// within an iteration.
	RunDefault RunMode = iota
	// RunOnce drives exactly one iteration, blocking if necessary.
	RunOnce
	// RunDrain drives iterations non-blockingly until there is nothing
	// immediately ready, without waiting for future readiness.
	RunDrain
)

// Run acquires driving duty for the calling goroutine (if nobody is
// currently driving) and executes the OS loop according to mode; otherwise
// it parks until the current driver releases the slot, then retries.
//
// This is spec.md §4.1's runner-stealing protocol, arbitrated entirely
// through the [runner.Queue]: "if no thread is running, the caller becomes
// the runner and calls the loop ... Otherwise the caller parks ... When the
// sender completes ... The waiting runner then wakes the next parked
// runner."
func (l *Loop) Run(mode RunMode) {
	l.runProtocol(mode, func() bool { return false })
}

// WaitUntil is the entry point package syncwait uses: it drives the loop
// (becoming the driver if nobody else is) until done reports true,
// cooperating with any other goroutine simultaneously driving or waiting
// via the same protocol.
func (l *Loop) WaitUntil(done func() bool) {
	l.runProtocol(RunDefault, done)
}

// runProtocol is spec.md §4.1's runner-stealing loop, written exactly to
// its three-step description: (1) try to become the driver; (2) if that
// fails, park and, on wakeup, recheck; (3) once driving, run until done (or
// the loop's own Finish) and hand off.
func (l *Loop) runProtocol(mode RunMode, done func() bool) {
	r := runner.NewRunner()

	for !done() {
		if !r.IsDriving() {
			if !l.runners.TryBecomeDriver(r) {
				r.Wait()
				continue
			}
		}

		l.driveUntil(mode, done)
		l.runners.Release()
		return
	}

	// done() became true between r being handed the driver slot (by the
	// previous driver's Release) and this goroutine's next check, before it
	// ever called driveUntil. The slot is still pinned to r; release it so
	// the next parked runner (if any) isn't wedged forever.
	if r.IsDriving() {
		l.runners.Release()
	}
}

func (l *Loop) driveUntil(mode RunMode, done func() bool) {
	l.finish = false
	switch mode {
	case RunOnce:
		_ = l.runOnce(-1)
	case RunDrain:
		for {
			if err := l.runOnce(0); err != nil {
				l.log.Warn("loop: drain iteration failed", "err", err)
				return
			}
			if l.finish || done() || l.sched.Empty() {
				return
			}
		}
	default: // RunDefault
		for !l.finish && !done() {
			if err := l.runOnce(-1); err != nil {
				l.log.Warn("loop: iteration failed", "err", err)
				return
			}
		}
	}
}

// Close closes the async handle, drains one final iteration, and then
// requires the OS loop to have no live handles remaining. A live handle
// outliving its Loop is a program bug and panics, per spec.md §4.1's
// destructor contract.
func (l *Loop) Close() {
	_ = l.os.Unregister(l.async.FD())
	_ = l.async.Close()
	l.drain()
	if n := l.os.LiveHandles(); n != 0 {
		panic(fmt.Sprintf("loop: Close called with %d live handle(s) outstanding", n))
	}
	if err := l.os.Close(); err != nil {
		l.log.Warn("loop: closing OS loop failed", "err", err)
	}
}

// Logger returns the Loop's configured logger.
func (l *Loop) Logger() *slog.Logger { return l.log }
