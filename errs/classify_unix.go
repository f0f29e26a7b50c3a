//go:build unix

// Per-OS errno tables, grounded on the classification style in
// _examples/bassosimone-nop/errclass/unix.go: a flat const table translating
// platform errno values into this package's vocabulary, kept in a file
// guarded by a build tag so a future Windows port only needs its own table.

package errs

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	errEADDRINUSE      = unix.EADDRINUSE
	errEADDRNOTAVAIL   = unix.EADDRNOTAVAIL
	errECONNABORTED    = unix.ECONNABORTED
	errECONNREFUSED    = unix.ECONNREFUSED
	errECONNRESET      = unix.ECONNRESET
	errEHOSTUNREACH    = unix.EHOSTUNREACH
	errEINVAL          = unix.EINVAL
	errEINTR           = unix.EINTR
	errENETDOWN        = unix.ENETDOWN
	errENETUNREACH     = unix.ENETUNREACH
	errENOBUFS         = unix.ENOBUFS
	errENOTCONN        = unix.ENOTCONN
	errEPROTONOSUPPORT = unix.EPROTONOSUPPORT
	errETIMEDOUT       = unix.ETIMEDOUT
	errEPIPE           = unix.EPIPE
)

func classify(errno syscall.Errno) Code {
	switch errno {
	case errEADDRINUSE:
		return AddressInUse
	case errEADDRNOTAVAIL:
		return AddressNotAvailable
	case errECONNABORTED:
		return ConnectionAborted
	case errECONNREFUSED:
		return ConnectionRefused
	case errECONNRESET:
		return ConnectionReset
	case errEHOSTUNREACH:
		return HostUnreachable
	case errEINVAL:
		return Invalid
	case errEINTR:
		return Interrupted
	case errENETDOWN:
		return NetworkDown
	case errENETUNREACH:
		return NetworkUnreachable
	case errENOBUFS:
		return NoBufferSpace
	case errENOTCONN:
		return NotConnected
	case errEPROTONOSUPPORT:
		return ProtocolNotSupported
	case errETIMEDOUT:
		return TimedOut
	case errEPIPE:
		return BrokenPipe
	default:
		return Unknown
	}
}
