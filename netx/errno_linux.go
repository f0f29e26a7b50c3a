//go:build linux

package netx

import "syscall"

func asErrno(err error) (syscall.Errno, bool) {
	errno, ok := err.(syscall.Errno)
	return errno, ok
}
