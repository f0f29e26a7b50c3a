//go:build linux

// Package osx wraps the async-I/O primitives spec.md calls the "OS adaptor"
// (C1): epoll for readiness, eventfd for the loop's self-wake handle,
// timerfd for timed-schedule, signalfd for signal-once, and the raw socket
// syscalls used by the sockets/listeners layer.
//
// Grounded on the epoll reactor idiom in
// _examples/momentics-hioload-ws/reactor/reactor_linux.go and the
// direct-indexed FD table in
// _examples/joeycumines-go-utilpkg/eventloop/poller_linux.go.
package osx

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Events is a bitmask of readiness conditions, mirroring EPOLLIN/EPOLLOUT.
type Events uint32

const (
	Readable Events = 1 << iota
	Writable
	Error
	Hangup
)

// Callback is invoked once per observed readiness event on a registered FD.
type Callback func(ev Events)

type fdEntry struct {
	cb     Callback
	active bool
}

// OSLoop is a thin epoll(7) wrapper. It is not safe for concurrent use: all
// methods must be called from the loop thread, matching spec.md §5's
// thread-safety summary.
type OSLoop struct {
	epfd    int
	fds     map[int32]*fdEntry
	evbuf   []unix.EpollEvent
	nlive   int
}

// NewOSLoop creates a new epoll instance. bufSize bounds how many ready
// events are drained per Poll call.
func NewOSLoop(bufSize int) (*OSLoop, error) {
	if bufSize <= 0 {
		bufSize = 256
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("osx: epoll_create1: %w", err)
	}
	return &OSLoop{
		epfd:  epfd,
		fds:   make(map[int32]*fdEntry),
		evbuf: make([]unix.EpollEvent, bufSize),
	}, nil
}

// Register starts watching fd for ev, invoking cb on every readiness event
// until Unregister is called. Registration is level-triggered.
func (l *OSLoop) Register(fd int, ev Events, cb Callback) error {
	var epev unix.EpollEvent
	epev.Events = toEpoll(ev)
	epev.Fd = int32(fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &epev); err != nil {
		return fmt.Errorf("osx: epoll_ctl(add, %d): %w", fd, err)
	}
	l.fds[int32(fd)] = &fdEntry{cb: cb, active: true}
	l.nlive++
	return nil
}

// Modify changes the watched event set for an already-registered fd.
func (l *OSLoop) Modify(fd int, ev Events) error {
	var epev unix.EpollEvent
	epev.Events = toEpoll(ev)
	epev.Fd = int32(fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, fd, &epev); err != nil {
		return fmt.Errorf("osx: epoll_ctl(mod, %d): %w", fd, err)
	}
	return nil
}

// Unregister stops watching fd. Safe to call even if fd was never
// registered (a no-op in that case).
func (l *OSLoop) Unregister(fd int) error {
	entry, ok := l.fds[int32(fd)]
	if !ok {
		return nil
	}
	delete(l.fds, int32(fd))
	if entry.active {
		l.nlive--
	}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// LiveHandles reports how many FDs are currently registered. The owning
// [loop.Loop] asserts this is zero at Close, per spec.md §4.1's destructor
// contract ("a live handle outliving its loop is a program bug").
func (l *OSLoop) LiveHandles() int {
	return l.nlive
}

// Poll blocks up to timeoutMs (or indefinitely if negative, or returns
// immediately if zero) waiting for readiness, then dispatches one callback
// per ready FD. An EINTR from epoll_wait returns nil with no callbacks
// dispatched; the caller's next Poll waits again.
func (l *OSLoop) Poll(timeoutMs int) error {
	n, err := unix.EpollWait(l.epfd, l.evbuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("osx: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := l.evbuf[i]
		entry, ok := l.fds[ev.Fd]
		if !ok || !entry.active {
			continue
		}
		entry.cb(fromEpoll(ev.Events))
	}
	return nil
}

// Close releases the epoll fd.
func (l *OSLoop) Close() error {
	return unix.Close(l.epfd)
}

func toEpoll(ev Events) uint32 {
	var r uint32
	if ev&Readable != 0 {
		r |= unix.EPOLLIN
	}
	if ev&Writable != 0 {
		r |= unix.EPOLLOUT
	}
	return r
}

func fromEpoll(e uint32) Events {
	var r Events
	if e&unix.EPOLLIN != 0 {
		r |= Readable
	}
	if e&unix.EPOLLOUT != 0 {
		r |= Writable
	}
	if e&(unix.EPOLLERR) != 0 {
		r |= Error
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		r |= Hangup
	}
	return r
}
