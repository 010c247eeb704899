package main

import (
	"os"
	"sync/atomic"
	"time"
)

// drain flips readiness to shutting_down and keeps serving for delay, so load
// balancers stop routing here before the listener closes. A second signal
// cuts the wait short.
func drain(draining *atomic.Bool, delay time.Duration, stop <-chan os.Signal) {
	draining.Store(true)
	if delay <= 0 {
		return
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
	case <-stop:
	}
}
