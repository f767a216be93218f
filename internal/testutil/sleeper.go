package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingSleeper records backoff waits without sleeping.
type RecordingSleeper struct {
	mu    sync.Mutex
	Waits []time.Duration
}

// Sleep satisfies client.SleepFunc. It returns the context error, if any,
// so cancellation still ends a retry loop.
func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.Waits = append(r.Waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Snapshot returns a copy of the recorded waits.
func (r *RecordingSleeper) Snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.Waits...)
}
