package alg

import (
	"errors"
	"syscall"

	"github.com/relaypath/aioloop/errs"
)

// isAgain reports whether err is the "no data/space available right now"
// condition a non-blocking read/write surfaces, which every send/receive
// op-state treats as "wait for readiness" rather than a real failure.
func isAgain(err error) bool {
	var e *errs.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Errno == syscall.EAGAIN || e.Errno == syscall.EWOULDBLOCK
}
