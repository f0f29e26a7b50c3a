//go:build linux

package osx

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SignalWatcher delivers a single OS signal through signalfd(2) instead of
// Go's default signal.Notify channel machinery, so it can be multiplexed on
// the same epoll reactor as every other I/O source, per spec.md §4.4.
//
// The requested signal is blocked with pthread_sigmask for the lifetime of
// the watcher. That mask applies only to the OS thread that called
// NewSignalWatcher; other threads of the process keep their own masks.
type SignalWatcher struct {
	fd      int
	signum  int
	oldmask unix.Sigset_t
}

// NewSignalWatcher arms watching for signum (e.g. unix.SIGUSR1).
func NewSignalWatcher(signum int) (*SignalWatcher, error) {
	var mask unix.Sigset_t
	sigaddset(&mask, signum)

	var oldmask unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, &oldmask); err != nil {
		return nil, fmt.Errorf("osx: pthread_sigmask: %w", err)
	}

	fd, err := unix.Signalfd(-1, &mask, unix.SFD_CLOEXEC|unix.SFD_NONBLOCK)
	if err != nil {
		_ = unix.PthreadSigmask(unix.SIG_SETMASK, &oldmask, nil)
		return nil, fmt.Errorf("osx: signalfd: %w", err)
	}

	return &SignalWatcher{fd: fd, signum: signum, oldmask: oldmask}, nil
}

// FD returns the file descriptor for registration with an [OSLoop].
func (s *SignalWatcher) FD() int { return s.fd }

// ConsumeOne reads and discards one signalfd_siginfo record, matching
// spec.md §4.4's "the first arrival ... fires once, never repeats" — the
// caller unregisters/closes after the first readable event.
func (s *SignalWatcher) ConsumeOne() error {
	var info unix.SignalfdSiginfo
	buf := (*[unsafe.Sizeof(info)]byte)(unsafe.Pointer(&info))[:]
	for {
		_, err := unix.Read(s.fd, buf)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// Close releases the signalfd and restores the previous signal mask.
func (s *SignalWatcher) Close() error {
	err := unix.Close(s.fd)
	_ = unix.PthreadSigmask(unix.SIG_SETMASK, &s.oldmask, nil)
	return err
}

func sigaddset(set *unix.Sigset_t, signum int) {
	// unix.Sigset_t's layout is an opaque array of uint64 words; Go's
	// x/sys/unix does not expose sigaddset directly, so it is inlined
	// here the same way the libc macro works: word index, bit within it.
	word := (signum - 1) / 64
	bit := uint((signum - 1) % 64)
	set.Val[word] |= 1 << bit
}
