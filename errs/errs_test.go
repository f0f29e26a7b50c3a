package errs_test

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/relaypath/aioloop/errs"
)

func TestFromErrno(t *testing.T) {
	t.Run("KnownErrnoClassifies", func(t *testing.T) {
		e := errs.FromErrno("connect", unix.ECONNREFUSED)
		if e.Code != errs.ConnectionRefused {
			t.Fatalf("Code = %v, want %v", e.Code, errs.ConnectionRefused)
		}
		if e.Op != "connect" {
			t.Fatalf("Op = %q, want %q", e.Op, "connect")
		}
	})

	t.Run("UnknownErrnoFallsBackToUnknown", func(t *testing.T) {
		e := errs.FromErrno("read", unix.Errno(0xdead))
		if e.Code != errs.Unknown {
			t.Fatalf("Code = %v, want %v", e.Code, errs.Unknown)
		}
	})

	t.Run("UnwrapReachesTheSyscallErrno", func(t *testing.T) {
		e := errs.FromErrno("bind", unix.EADDRINUSE)
		if !errors.Is(e, unix.EADDRINUSE) {
			t.Fatal("errors.Is(e, unix.EADDRINUSE) = false, want true via Unwrap")
		}
	})

	t.Run("ZeroErrnoUnwrapsToNil", func(t *testing.T) {
		e := &errs.Error{Code: errs.Canceled}
		if e.Unwrap() != nil {
			t.Fatalf("Unwrap() = %v, want nil for a zero Errno", e.Unwrap())
		}
	})
}

func TestCodeString(t *testing.T) {
	t.Run("KnownCodeHasAName", func(t *testing.T) {
		if got := errs.TimedOut.String(); got != "timed_out" {
			t.Fatalf("String() = %q, want %q", got, "timed_out")
		}
	})

	t.Run("OutOfRangeCodeFallsBackToUnknown", func(t *testing.T) {
		if got := errs.Code(999).String(); got != "unknown" {
			t.Fatalf("String() = %q, want %q", got, "unknown")
		}
	})
}

func TestErrorMessageIncludesOpAndCode(t *testing.T) {
	e := errs.FromErrno("send", unix.EPIPE)
	msg := e.Error()
	if !strings.Contains(msg, "send") || !strings.Contains(msg, "broken_pipe") {
		t.Fatalf("Error() = %q, want it to mention the op and the category", msg)
	}
}
