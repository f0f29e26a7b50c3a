//go:build linux

// Self-wake handle, grounded on
// _examples/joeycumines-go-utilpkg/eventloop/wakeup_linux.go's use of
// eventfd(2) for cross-thread wakeups.

package osx

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Async is the loop's self-wake handle (spec.md §3's "async handle"): an
// eventfd that any thread can signal to force the loop out of its epoll_wait
// so it drains the scheduled list.
type Async struct {
	fd int
}

// NewAsync creates an eventfd in non-blocking, semaphore-less mode.
func NewAsync() (*Async, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("osx: eventfd: %w", err)
	}
	return &Async{fd: fd}, nil
}

// FD returns the underlying file descriptor for registration with an
// [OSLoop].
func (a *Async) FD() int { return a.fd }

// Send wakes the loop. Safe to call from any goroutine, any number of
// times; wakeups coalesce (eventfd accumulates a counter).
func (a *Async) Send() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(a.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		// EAGAIN means the counter is already saturated; a pending
		// wakeup is already on its way, so dropping this one is safe.
		return
	}
}

// Drain clears the eventfd counter after a wakeup has been observed.
func (a *Async) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(a.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}

// Close releases the eventfd.
func (a *Async) Close() error {
	return unix.Close(a.fd)
}
