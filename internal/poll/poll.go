// Package poll implements the poll-sleep-retry loop shared by every bounded
// wait in rehearse: queue receive, correlation lookup and the wait container.
//
// Worst-case latency is the timeout plus one polling interval. A zero timeout
// performs exactly one check.
package poll

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is used when a caller passes a non-positive interval.
const DefaultInterval = 500 * time.Millisecond

// Until calls check until it returns true, the timeout elapses or ctx is
// done. It reports whether check succeeded.
func Until(ctx context.Context, clock clockwork.Clock, timeout, interval time.Duration, check func() bool) bool {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := clock.Now().Add(timeout)
	for {
		if check() {
			return true
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return false
		}

		wait := interval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return false
		case <-clock.After(wait):
		}
	}
}

// Sleep blocks for d on the given clock or until ctx is done.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
