package action

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// Parallel runs each child on its own goroutine and waits for all of them.
// One failing branch is returned as-is; several are folded into a single
// aggregate failure so no branch failure is dropped.
type Parallel struct {
	Meta
	Children
	// Limit bounds the number of branches running at once; 0 means no bound.
	Limit int
}

func (a *Parallel) Name() string { return a.nameOr("parallel") }

func (a *Parallel) Execute(ctx context.Context, tc *testcontext.Context) error {
	errs := make([]error, len(a.List))

	var g errgroup.Group
	if a.Limit > 0 {
		g.SetLimit(a.Limit)
	}
	for i, child := range a.List {
		g.Go(func() error {
			errs[i] = execute(ctx, tc, child)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}

	switch len(failures) {
	case 0:
		return nil
	case 1:
		return failures[0]
	default:
		return &failure.AggregateError{Action: a.Name(), Failures: failures}
	}
}

// Async starts its children on a detached goroutine and returns at once.
// The branch ignores cancellation of the caller. Its failure is recorded in
// the test context instead of being returned; Success or Error actions then
// run on the same goroutine.
type Async struct {
	Meta
	Children
	Success []Action
	Error   []Action
}

func (a *Async) Name() string { return a.nameOr("async") }

func (a *Async) Execute(ctx context.Context, tc *testcontext.Context) error {
	detached := context.WithoutCancel(ctx)
	done := tc.StartAsync()

	go func() {
		defer done()

		err := runAll(detached, tc, a.List)
		if err == nil {
			if err := runAll(detached, tc, a.Success); err != nil {
				a.record(tc, err)
			}
			return
		}

		a.record(tc, err)
		if err := runAll(detached, tc, a.Error); err != nil {
			a.record(tc, err)
		}
	}()

	return nil
}

func (a *Async) record(tc *testcontext.Context, err error) {
	logging.Warn("Async", "Async action %s failed: %v", a.Name(), err)
	tc.RecordAsyncFailure(a.Name(), err)
}
