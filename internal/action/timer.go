package action

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

const defaultTimerInterval = time.Second

// Timer runs its children once per interval. The index variable
// "<id>-index" counts ticks from 0. A forked timer runs in the background
// until RepeatCount ticks have run, a tick fails, or it is stopped by id.
// Stopping is observed at the start of every tick, so at most the tick
// already in progress completes after a stop.
type Timer struct {
	Meta
	Children
	ID          string
	Interval    time.Duration
	Delay       time.Duration
	RepeatCount int
	Fork        bool
}

func (a *Timer) Name() string { return a.nameOr("timer") }

func (a *Timer) Execute(ctx context.Context, tc *testcontext.Context) error {
	id := a.ID
	if id == "" {
		id = "timer-" + uuid.NewString()[:8]
	}
	interval := a.Interval
	if interval <= 0 {
		interval = defaultTimerInterval
	}

	run := newTimerRun()
	tc.Timers().Register(id, run)

	if !a.Fork {
		return a.loop(ctx, tc, run, id, interval)
	}

	logging.Debug("Timer", "Forking timer %s with interval %s", id, interval)
	done := tc.StartAsync()
	go func() {
		defer done()
		if err := a.loop(context.WithoutCancel(ctx), tc, run, id, interval); err != nil {
			logging.Warn("Timer", "Timer %s stopped after failure: %v", id, err)
			tc.RecordAsyncFailure(a.Name(), err)
		}
	}()
	return nil
}

func (a *Timer) loop(ctx context.Context, tc *testcontext.Context, run *timerRun, id string, interval time.Duration) error {
	defer close(run.done)
	clock := tc.Clock()

	if a.Delay > 0 {
		select {
		case <-run.stop:
			return nil
		case <-ctx.Done():
			return failure.Wrap(a.Name(), checkContext(ctx))
		case <-clock.After(a.Delay):
		}
	}

	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for index := 0; ; index++ {
		if run.stopped.Load() {
			logging.Debug("Timer", "Timer %s stopped after %d ticks", id, index)
			return nil
		}

		tc.SetVariable(id+"-index", index)
		if err := runAll(ctx, tc, a.List); err != nil {
			run.Stop()
			return err
		}
		if a.RepeatCount > 0 && index+1 >= a.RepeatCount {
			return nil
		}

		select {
		case <-run.stop:
			return nil
		case <-ctx.Done():
			return failure.Wrap(a.Name(), checkContext(ctx))
		case <-ticker.Chan():
		}
	}
}

// timerRun is the stop handle of one timer execution.
type timerRun struct {
	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newTimerRun() *timerRun {
	return &timerRun{stop: make(chan struct{}), done: make(chan struct{})}
}

// Stop marks the timer stopped. It is safe to call more than once.
func (r *timerRun) Stop() {
	r.stopped.Store(true)
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed once the timer loop has returned.
func (r *timerRun) Done() <-chan struct{} {
	return r.done
}
