package alg

import "github.com/relaypath/aioloop/internal/osx"

// closeFD releases a raw fd that an op-state lost the race to adopt, e.g.
// an accept that completed with a connection just as a cancellation won
// the completion race.
func closeFD(fd int) error {
	return osx.Close(fd)
}
