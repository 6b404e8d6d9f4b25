package rpcclient

import (
	"sync"
	"time"
)

// atomicHealth accumulates call outcomes behind a mutex. Adapted from
// the teacher's SimpleHealthTracker, stripped of the circuit-breaker
// open/close state machine since there is nowhere to fail over to.
type atomicHealth struct {
	mu sync.Mutex
	h  Health
}

func (a *atomicHealth) recordSuccess(latencyMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.h.TotalCalls++
	a.h.SuccessfulCalls++
	a.h.LastSuccessUnix = time.Now().Unix()
	if a.h.AvgLatencyMs == 0 {
		a.h.AvgLatencyMs = latencyMs
	} else {
		a.h.AvgLatencyMs = (a.h.AvgLatencyMs*9 + latencyMs) / 10
	}
}

func (a *atomicHealth) recordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.h.TotalCalls++
	a.h.FailedCalls++
	a.h.LastFailureUnix = time.Now().Unix()
}

func (a *atomicHealth) snapshot() Health {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.h
}
