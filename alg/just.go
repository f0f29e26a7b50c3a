package alg

import "github.com/relaypath/aioloop/opstate"

// Just returns a sender that completes synchronously with v, the base case
// every [domain.Then] chain needs for its final or error-branch leg.
func Just[V any](v V) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() { r.SetValue(v) })
	})
}

// Fail returns a sender that completes synchronously with err.
func Fail[V any](err error) Sender[V] {
	return FromConnect(func(r opstate.Receiver[V]) OpState {
		return fromStart(func() { r.SetError(err) })
	})
}
