package runner

import (
	"time"

	"rehearse/internal/action"
)

// Result is the outcome of a test case.
type Result string

const (
	// ResultPassed indicates the case ran without an unrecovered failure
	ResultPassed Result = "PASSED"
	// ResultFailed indicates an action failure reached the root of the case
	ResultFailed Result = "FAILED"
	// ResultSkipped indicates the case was marked skip
	ResultSkipped Result = "SKIPPED"
	// ResultError indicates the case could not be set up
	ResultError Result = "ERROR"
)

// TestLogger provides centralized logging for test execution
type TestLogger interface {
	// Debug logs debug-level messages (only shown when debug=true)
	Debug(format string, args ...interface{})
	// Info logs info-level messages (shown when verbose=true or debug=true)
	Info(format string, args ...interface{})
	// Error logs error-level messages (always shown)
	Error(format string, args ...interface{})
	// IsDebugEnabled returns whether debug logging is enabled
	IsDebugEnabled() bool
	// IsVerboseEnabled returns whether verbose logging is enabled
	IsVerboseEnabled() bool
}

// Configuration defines a suite run.
type Configuration struct {
	// Timeout bounds the whole suite; zero means no bound
	Timeout time.Duration `json:"timeout"`
	// CaseTimeout is applied to cases that declare no timeout of their own
	CaseTimeout time.Duration `json:"case_timeout,omitempty"`
	// Scenario restricts the run to one case name
	Scenario string `json:"scenario,omitempty"`
	// Tags restricts the run to cases carrying any of these tags
	Tags []string `json:"tags,omitempty"`
	// Parallel is the number of cases run at once
	Parallel int `json:"parallel"`
	// FailFast stops scheduling cases after the first failure
	FailFast bool `json:"fail_fast"`
	Verbose  bool `json:"verbose"`
	Debug    bool `json:"debug"`
	// ReportPath is the directory detailed JSON reports are written to
	ReportPath string `json:"report_path,omitempty"`
}

// TestCase is a named tree of actions.
type TestCase struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	// Variables are bound in order before the first action runs
	Variables []action.Variable `json:"-"`
	Actions   []action.Action   `json:"-"`
	// Finally runs after Actions whatever their outcome
	Finally []action.Action `json:"-"`
	Timeout time.Duration   `json:"timeout,omitempty"`
	Skip    bool            `json:"skip,omitempty"`
	// Source is the file the case was loaded from, if any
	Source string `json:"source,omitempty"`
}

// HasTag reports whether the case carries tag.
func (c TestCase) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CaseResult is the result of a single test case
type CaseResult struct {
	Case      TestCase      `json:"case"`
	Result    Result        `json:"result"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	// Error is the full failure chain of the unrecovered failure
	Error string `json:"error,omitempty"`
	// Kind classifies the unrecovered failure
	Kind string `json:"kind,omitempty"`
	// Cause is the unrecovered failure itself
	Cause error `json:"-"`
	// FinallyError reports a failure of the finally actions
	FinallyError string `json:"finally_error,omitempty"`
	// AsyncFailures lists failures of detached branches; they do not fail
	// the case
	AsyncFailures []string `json:"async_failures,omitempty"`
	// StoppedTimers lists forked timers still running at teardown
	StoppedTimers []string `json:"stopped_timers,omitempty"`
}

// SuiteResult is the overall result of a suite run
type SuiteResult struct {
	RunID         string        `json:"run_id"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	TotalCases    int           `json:"total_cases"`
	PassedCases   int           `json:"passed_cases"`
	FailedCases   int           `json:"failed_cases"`
	SkippedCases  int           `json:"skipped_cases"`
	ErrorCases    int           `json:"error_cases"`
	CaseResults   []CaseResult  `json:"case_results"`
	Configuration Configuration `json:"configuration"`
}

// Succeeded reports whether no case failed or errored.
func (s SuiteResult) Succeeded() bool {
	return s.FailedCases == 0 && s.ErrorCases == 0
}

// Reporter receives progress callbacks of a suite run.
type Reporter interface {
	// ReportStart is called when the suite begins
	ReportStart(config Configuration, total int)
	// ReportCaseStart is called when a case begins
	ReportCaseStart(tc TestCase)
	// ReportCaseResult is called when a case completes
	ReportCaseResult(result CaseResult)
	// ReportSuiteResult is called when all cases complete
	ReportSuiteResult(result SuiteResult)
	// SetParallelMode enables or disables parallel output buffering
	SetParallelMode(parallel bool)
}
