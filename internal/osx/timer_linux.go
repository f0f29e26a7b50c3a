//go:build linux

package osx

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Timer is a one-shot timerfd(2), realizing spec.md §4.3's "Armed" state: it
// becomes readable exactly once, after the armed delay elapses, fed through
// the same epoll reactor as every other readiness source (no separate timer
// wheel).
type Timer struct {
	fd int
}

// NewTimer creates an unarmed timerfd bound to CLOCK_MONOTONIC, matching
// spec.md §6's "Clock: Steady, millisecond resolution".
func NewTimer() (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("osx: timerfd_create: %w", err)
	}
	return &Timer{fd: fd}, nil
}

// FD returns the file descriptor for registration with an [OSLoop].
func (t *Timer) FD() int { return t.fd }

// Arm schedules the timer to fire once after d (clamped to >= 0), per
// spec.md §4.3: "For after(d) the delay is max(d, 0)".
func (t *Timer) Arm(d time.Duration) error {
	if d <= 0 {
		// timerfd_settime treats an all-zero it_value as "disarm", so a
		// zero or negative delay is rounded up to 1ns to still fire on
		// the next epoll iteration rather than never at all.
		d = time.Nanosecond
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("osx: timerfd_settime: %w", err)
	}
	return nil
}

// Stop disarms the timer without closing it, used on the cancellation fast
// path (spec.md §4.2 step 5's "TimerStop").
func (t *Timer) Stop() error {
	var spec unix.ItimerSpec
	return unix.TimerfdSettime(t.fd, 0, &spec, nil)
}

// ConsumeExpiry reads and discards the 8-byte expiration counter that
// becoming readable delivers.
func (t *Timer) ConsumeExpiry() {
	var buf [8]byte
	for {
		_, err := unix.Read(t.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Close releases the timerfd.
func (t *Timer) Close() error {
	return unix.Close(t.fd)
}
