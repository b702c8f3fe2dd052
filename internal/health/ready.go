package health

import "sync/atomic"

var notReady atomic.Bool

// SetReady flips the readiness gate. Call with false at the start of a
// graceful shutdown so load balancers drain traffic before connections close.
func SetReady(ready bool) {
	notReady.Store(!ready)
}
