package orchestrator

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// admission bounds the work the service accepts: at most running jobs hold a
// slot of sem, and at most running+queued jobs are admitted at all.
type admission struct {
	sem      *semaphore.Weighted
	limit    int64
	inflight atomic.Int64
}

func newAdmission(running, queued int) *admission {
	if running < 1 {
		running = 1
	}
	if queued < 0 {
		queued = 0
	}
	return &admission{
		sem:   semaphore.NewWeighted(int64(running)),
		limit: int64(running + queued),
	}
}

// tryAdmit reserves room for one job, reporting false when full.
func (a *admission) tryAdmit() bool {
	for {
		n := a.inflight.Load()
		if n >= a.limit {
			return false
		}
		if a.inflight.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// cancel returns a reservation that never reached acquire.
func (a *admission) cancel() {
	a.inflight.Add(-1)
}

// acquire blocks until a running slot is free.
func (a *admission) acquire(ctx context.Context) error {
	return a.sem.Acquire(ctx, 1)
}

// release frees the running slot and the admission reservation.
func (a *admission) release() {
	a.sem.Release(1)
	a.inflight.Add(-1)
}

func (a *admission) inFlight() int {
	return int(a.inflight.Load())
}
