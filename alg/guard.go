package alg

import (
	"fmt"
	"runtime/debug"
)

// panicError wraps a recovered panic from a read_until predicate so it
// surfaces through set_error instead of unwinding through an OS callback.
// The body functions passed to the bind_to/connect_to/accept_from/
// async_value adaptors are called without a recover, so a panic in one of
// them is not converted.
//
// Grounded on the recover/rethrow split in
// _examples/b97tsk-async/paniccatcher.go, simplified to the single-shot case
// alg's callbacks need (no batching across a coroutine's lifetime).
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("alg: panic in user callback: %v\n%s", p.value, p.stack)
}

// guard runs f, converting any panic into a returned *panicError rather than
// letting it unwind. It returns nil when f returned normally.
func guard(f func()) (perr *panicError) {
	defer func() {
		if v := recover(); v != nil {
			perr = &panicError{value: v, stack: debug.Stack()}
		}
	}()
	f()
	return nil
}

// guardPredicate runs a read_until predicate, converting a panic into an
// error return instead of letting it propagate into the OS read callback.
func guardPredicate(pred func(n int) bool, n int) (result bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &panicError{value: v, stack: debug.Stack()}
		}
	}()
	return pred(n), nil
}
