package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "rehearse/pkg/strings"
)

// textReporter prints human-readable progress and a summary table.
type textReporter struct {
	out          io.Writer
	verbose      bool
	debug        bool
	reportPath   string
	parallelMode bool
	mu           sync.Mutex
}

// NewTextReporter creates the default reporter. When reportPath is set a
// detailed JSON report is written there after the suite completes.
func NewTextReporter(out io.Writer, verbose, debug bool, reportPath string) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &textReporter{
		out:        out,
		verbose:    verbose,
		debug:      debug,
		reportPath: reportPath,
	}
}

// SetParallelMode enables or disables parallel output buffering
func (r *textReporter) SetParallelMode(parallel bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parallelMode = parallel
}

// ReportStart is called when test execution begins
func (r *textReporter) ReportStart(config Configuration, total int) {
	fmt.Fprintf(r.out, "🧪 Running %d test cases\n", total)

	if r.verbose {
		fmt.Fprintf(r.out, "\n⚙️  Configuration:\n")
		fmt.Fprintf(r.out, "   • Scenario: %s\n", stringOrDefault(config.Scenario, "all"))
		fmt.Fprintf(r.out, "   • Tags: %s\n", stringOrDefault(strings.Join(config.Tags, ", "), "all"))
		fmt.Fprintf(r.out, "   • Parallel workers: %d\n", config.Parallel)
		fmt.Fprintf(r.out, "   • Fail fast: %t\n", config.FailFast)
		fmt.Fprintf(r.out, "   • Timeout: %v\n", config.Timeout)
		if config.ReportPath != "" {
			fmt.Fprintf(r.out, "   • Report path: %s\n", config.ReportPath)
		}
		fmt.Fprintf(r.out, "\n")
	}
}

// ReportCaseStart is called when a case begins
func (r *textReporter) ReportCaseStart(tc TestCase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.verbose {
		if !r.parallelMode {
			fmt.Fprintf(r.out, "🎯 %s... ", tc.Name)
		}
		return
	}

	fmt.Fprintf(r.out, "🎯 Starting case: %s\n", tc.Name)
	if tc.Description != "" {
		fmt.Fprintf(r.out, "   📝 Description: %s\n", tc.Description)
	}
	if len(tc.Tags) > 0 {
		fmt.Fprintf(r.out, "   🏷️  Tags: %s\n", strings.Join(tc.Tags, ", "))
	}
	fmt.Fprintf(r.out, "   📋 Actions: %d\n", len(tc.Actions))
	if len(tc.Finally) > 0 {
		fmt.Fprintf(r.out, "   🧹 Finally actions: %d\n", len(tc.Finally))
	}
	if tc.Timeout > 0 {
		fmt.Fprintf(r.out, "   ⏱️  Timeout: %v\n", tc.Timeout)
	}
}

// ReportCaseResult is called when a case completes
func (r *textReporter) ReportCaseResult(cr CaseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol := resultSymbol(cr.Result)
	if !r.verbose {
		switch {
		case cr.Result == ResultSkipped:
			fmt.Fprintf(r.out, "🎯 %s... %s\n", cr.Case.Name, symbol)
		case r.parallelMode:
			fmt.Fprintf(r.out, "🎯 %s... %s (%v)\n", cr.Case.Name, symbol, cr.Duration)
		default:
			fmt.Fprintf(r.out, "%s (%v)\n", symbol, cr.Duration)
		}
		if cr.Error != "" {
			fmt.Fprintf(r.out, "   ❌ %s\n", cr.Error)
		}
		return
	}

	fmt.Fprintf(r.out, "%s Case completed: %s (%v)\n", symbol, cr.Case.Name, cr.Duration)
	if cr.Error != "" {
		fmt.Fprintf(r.out, "   ❌ Failure [%s]: %s\n", cr.Kind, cr.Error)
	}
	if cr.FinallyError != "" && cr.FinallyError != cr.Error {
		fmt.Fprintf(r.out, "   🧹 Finally failure: %s\n", cr.FinallyError)
	}
	for _, f := range cr.AsyncFailures {
		fmt.Fprintf(r.out, "   ⚠️  Async failure: %s\n", f)
	}
	if r.debug && len(cr.StoppedTimers) > 0 {
		fmt.Fprintf(r.out, "   ⏲️  Stopped timers: %s\n", strings.Join(cr.StoppedTimers, ", "))
	}
	fmt.Fprintf(r.out, "\n")
}

// ReportSuiteResult is called when all tests complete
func (r *textReporter) ReportSuiteResult(suite SuiteResult) {
	fmt.Fprintf(r.out, "\n🏁 Test Suite Complete\n")

	if len(suite.CaseResults) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(r.out)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.FgHiCyan.Sprint("CASE"),
			text.FgHiCyan.Sprint("RESULT"),
			text.FgHiCyan.Sprint("DURATION"),
			text.FgHiCyan.Sprint("FAILURE"),
		})
		for _, cr := range suite.CaseResults {
			t.AppendRow(table.Row{cr.Case.Name, colorResult(cr.Result), cr.Duration.Round(time.Millisecond), pkgstrings.Summarize(pkgstrings.Labelled(cr.Kind, cr.Error), pkgstrings.DefaultSummaryLen)})
		}
		t.Render()
	}

	fmt.Fprintf(r.out, "⏱️  Duration: %v\n", suite.Duration)
	fmt.Fprintf(r.out, "📊 Results:\n")
	fmt.Fprintf(r.out, "   ✅ Passed: %d\n", suite.PassedCases)
	if suite.FailedCases > 0 {
		fmt.Fprintf(r.out, "   ❌ Failed: %d\n", suite.FailedCases)
	}
	if suite.ErrorCases > 0 {
		fmt.Fprintf(r.out, "   💥 Errors: %d\n", suite.ErrorCases)
	}
	if suite.SkippedCases > 0 {
		fmt.Fprintf(r.out, "   ⏭️  Skipped: %d\n", suite.SkippedCases)
	}
	fmt.Fprintf(r.out, "   📈 Total: %d\n", suite.TotalCases)

	successRate := 0.0
	if suite.TotalCases > 0 {
		successRate = float64(suite.PassedCases) / float64(suite.TotalCases) * 100
	}
	fmt.Fprintf(r.out, "   📏 Success Rate: %.1f%%\n", successRate)

	if suite.Succeeded() {
		fmt.Fprintf(r.out, "\n🎉 All tests passed!\n")
	} else {
		fmt.Fprintf(r.out, "\n💔 Some tests failed\n")
	}

	if r.reportPath != "" {
		path, err := SaveReport(r.reportPath, suite)
		if err != nil {
			fmt.Fprintf(r.out, "⚠️  Failed to save detailed report: %v\n", err)
		} else {
			fmt.Fprintf(r.out, "📄 Detailed report saved to: %s\n", path)
		}
	}
}

// SaveReport writes suite as a timestamped JSON file below dir.
func SaveReport(dir string, suite SuiteResult) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := fmt.Sprintf("rehearse-report-%s.json", suite.StartTime.Format("20060102-150405"))
	fullPath := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return fullPath, nil
}

func resultSymbol(result Result) string {
	switch result {
	case ResultPassed:
		return "✅"
	case ResultFailed:
		return "❌"
	case ResultSkipped:
		return "⏭️"
	case ResultError:
		return "💥"
	default:
		return "❓"
	}
}

func colorResult(result Result) string {
	switch result {
	case ResultPassed:
		return text.FgGreen.Sprint(result)
	case ResultFailed, ResultError:
		return text.FgRed.Sprint(result)
	default:
		return text.FgYellow.Sprint(result)
	}
}

func stringOrDefault(s, defaultValue string) string {
	if s == "" {
		return defaultValue
	}
	return s
}

// NewQuietReporter creates a reporter that only outputs failures and the
// final summary.
func NewQuietReporter(out io.Writer) Reporter {
	if out == nil {
		out = io.Discard
	}
	return &quietReporter{out: out}
}

// quietReporter implements minimal output for CI/CD integration
type quietReporter struct {
	out io.Writer
	mu  sync.Mutex
}

func (r *quietReporter) ReportStart(config Configuration, total int) {}

func (r *quietReporter) ReportCaseStart(tc TestCase) {}

func (r *quietReporter) ReportCaseResult(cr CaseResult) {
	if cr.Result != ResultFailed && cr.Result != ResultError {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s: %s\n", resultSymbol(cr.Result), cr.Case.Name, cr.Error)
}

func (r *quietReporter) ReportSuiteResult(suite SuiteResult) {
	if suite.Succeeded() {
		fmt.Fprintf(r.out, "✅ All %d tests passed (%v)\n", suite.TotalCases, suite.Duration)
		return
	}
	fmt.Fprintf(r.out, "❌ %d/%d tests failed (%v)\n",
		suite.FailedCases+suite.ErrorCases,
		suite.TotalCases,
		suite.Duration)
}

func (r *quietReporter) SetParallelMode(parallel bool) {}

// NewJSONReporter creates a reporter that writes the suite result as JSON
// once all cases completed.
func NewJSONReporter(out io.Writer) Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &jsonReporter{out: out}
}

// jsonReporter implements JSON output for machine consumption
type jsonReporter struct {
	out    io.Writer
	config Configuration
}

func (r *jsonReporter) ReportStart(config Configuration, total int) {
	r.config = config
}

func (r *jsonReporter) ReportCaseStart(tc TestCase) {}

func (r *jsonReporter) ReportCaseResult(cr CaseResult) {}

func (r *jsonReporter) ReportSuiteResult(suite SuiteResult) {
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		fmt.Fprintf(r.out, "{\"error\": %q}\n", err.Error())
		return
	}
	fmt.Fprintln(r.out, string(data))
}

func (r *jsonReporter) SetParallelMode(parallel bool) {}

// NewReporter returns the reporter for an output format: text, json or
// quiet.
func NewReporter(format string, out io.Writer, verbose, debug bool, reportPath string) (Reporter, error) {
	switch format {
	case "", "text":
		return NewTextReporter(out, verbose, debug, reportPath), nil
	case "json":
		return NewJSONReporter(out), nil
	case "quiet":
		if out == nil {
			out = os.Stdout
		}
		return NewQuietReporter(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected text, json or quiet)", format)
	}
}
