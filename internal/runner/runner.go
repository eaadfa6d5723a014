package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rehearse/internal/action"
	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

const (
	defaultAsyncGrace     = 5 * time.Second
	defaultFinallyTimeout = 30 * time.Second
)

// Runner executes test cases against fresh test contexts.
type Runner struct {
	factory        *testcontext.Factory
	reporter       Reporter
	logger         TestLogger
	asyncGrace     time.Duration
	finallyTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for progress output.
func WithLogger(l TestLogger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithAsyncGrace sets how long a finished case waits for its detached
// branches.
func WithAsyncGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.asyncGrace = d
		}
	}
}

// WithFinallyTimeout bounds the finally actions of a case.
func WithFinallyTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.finallyTimeout = d
		}
	}
}

// New creates a runner. A nil reporter discards all progress.
func New(factory *testcontext.Factory, reporter Reporter, opts ...Option) *Runner {
	if reporter == nil {
		reporter = NewQuietReporter(nil)
	}
	r := &Runner{
		factory:        factory,
		reporter:       reporter,
		logger:         NewSilentLogger(false, false),
		asyncGrace:     defaultAsyncGrace,
		finallyTimeout: defaultFinallyTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes cases according to config and reports each result as it
// arrives. With FailFast no new case starts after a failure; cases already
// running complete.
func (r *Runner) Run(ctx context.Context, config Configuration, cases []TestCase) (*SuiteResult, error) {
	result := &SuiteResult{
		RunID:         uuid.NewString(),
		StartTime:     time.Now(),
		TotalCases:    len(cases),
		CaseResults:   make([]CaseResult, 0, len(cases)),
		Configuration: config,
	}

	r.reporter.ReportStart(config, len(cases))
	if len(cases) == 0 {
		r.finish(result)
		return result, nil
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	var (
		mu      sync.Mutex
		stopped atomic.Bool
	)
	collect := func(cr CaseResult) {
		mu.Lock()
		defer mu.Unlock()
		result.CaseResults = append(result.CaseResults, cr)
		r.updateCounters(result, cr)
		r.reporter.ReportCaseResult(cr)
		if config.FailFast && (cr.Result == ResultFailed || cr.Result == ResultError) {
			if !stopped.Swap(true) {
				r.logger.Debug("🛑 Fail-fast triggered by case: %s\n", cr.Case.Name)
			}
		}
	}

	if config.Parallel <= 1 {
		r.reporter.SetParallelMode(false)
		for _, tc := range cases {
			if stopped.Load() || ctx.Err() != nil {
				break
			}
			collect(r.runCase(ctx, tc, config))
		}
	} else {
		r.reporter.SetParallelMode(true)
		var g errgroup.Group
		g.SetLimit(config.Parallel)
		for _, tc := range cases {
			if stopped.Load() || ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if stopped.Load() {
					return nil
				}
				collect(r.runCase(ctx, tc, config))
				return nil
			})
		}
		_ = g.Wait()
	}

	r.finish(result)
	return result, nil
}

func (r *Runner) finish(result *SuiteResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	r.reporter.ReportSuiteResult(*result)
}

// RunCase executes a single case.
func (r *Runner) RunCase(ctx context.Context, tc TestCase) CaseResult {
	return r.runCase(ctx, tc, Configuration{})
}

func (r *Runner) runCase(ctx context.Context, tcase TestCase, config Configuration) CaseResult {
	result := CaseResult{
		Case:      tcase,
		Result:    ResultPassed,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	if tcase.Skip {
		result.Result = ResultSkipped
		return result
	}

	r.reporter.ReportCaseStart(tcase)
	logging.Debug("Runner", "Starting test case %s", tcase.Name)

	timeout := tcase.Timeout
	if timeout <= 0 {
		timeout = config.CaseTimeout
	}
	caseCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tc := r.factory.NewContext()
	tc.SetVariable("rehearse.case.name", tcase.Name)

	if len(tcase.Variables) > 0 {
		bind := &action.CreateVariables{Meta: action.Meta{Label: "variables"}, Variables: tcase.Variables}
		if err := bind.Execute(caseCtx, tc); err != nil {
			result.Result = ResultError
			r.fail(&result, err)
			return result
		}
	}

	root := action.NewSequence(tcase.Actions...)
	root.Label = tcase.Name
	if err := root.Execute(caseCtx, tc); err != nil {
		result.Result = ResultFailed
		r.fail(&result, err)
	}

	if len(tcase.Finally) > 0 {
		finallyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.finallyTimeout)
		err := action.NewSequence(tcase.Finally...).Execute(finallyCtx, tc)
		cancel()
		if err != nil {
			logging.Warn("Runner", "Finally actions of %s failed: %v", tcase.Name, err)
			result.FinallyError = err.Error()
			if result.Result == ResultPassed {
				result.Result = ResultFailed
				r.fail(&result, err)
			}
		}
	}

	r.teardown(ctx, tc, &result)
	logging.Debug("Runner", "Finished test case %s: %s", tcase.Name, result.Result)
	return result
}

func (r *Runner) fail(result *CaseResult, err error) {
	result.Cause = err
	result.Error = err.Error()
	result.Kind = string(failure.KindOf(err))
}

// teardown stops forked timers and waits for detached branches so their
// failures can be listed.
func (r *Runner) teardown(ctx context.Context, tc *testcontext.Context, result *CaseResult) {
	if stopped := tc.Timers().StopAll(); len(stopped) > 0 {
		logging.Debug("Runner", "Stopped timers %v of %s", stopped, result.Case.Name)
		result.StoppedTimers = stopped
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.asyncGrace)
	defer cancel()
	if !tc.WaitAsync(waitCtx) {
		logging.Warn("Runner", "Async actions of %s still running after %s", result.Case.Name, r.asyncGrace)
		r.logger.Info("⚠️  Async actions of %s still running after %s\n", result.Case.Name, r.asyncGrace)
	}

	for _, f := range tc.AsyncFailures() {
		result.AsyncFailures = append(result.AsyncFailures, fmt.Sprintf("%s: %v", f.Action, f.Err))
	}
}

// updateCounters updates the result counters based on a case result
func (r *Runner) updateCounters(suite *SuiteResult, cr CaseResult) {
	switch cr.Result {
	case ResultPassed:
		suite.PassedCases++
	case ResultFailed:
		suite.FailedCases++
	case ResultSkipped:
		suite.SkippedCases++
	case ResultError:
		suite.ErrorCases++
	}
}
