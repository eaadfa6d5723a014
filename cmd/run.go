package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"rehearse/internal/config"
	"rehearse/internal/runner"
	"rehearse/internal/scenario"
)

const maxParallel = 50

var outputFormats = []string{"text", "json", "quiet"}

type runOptions struct {
	configPath string
	timeout    time.Duration
	parallel   int
	failFast   bool
	verbose    bool
	debug      bool
	reportPath string
	output     string
	scenario   string
	tags       []string
	watch      bool
	debounce   time.Duration
}

// configuration maps the flags onto the runner configuration.
func (o *runOptions) configuration(caseTimeout time.Duration) runner.Configuration {
	return runner.Configuration{
		Timeout:     o.timeout,
		CaseTimeout: caseTimeout,
		Scenario:    o.scenario,
		Tags:        o.tags,
		Parallel:    o.parallel,
		FailFast:    o.failFast,
		Verbose:     o.verbose,
		Debug:       o.debug,
		ReportPath:  o.reportPath,
	}
}

func (o *runOptions) logger() runner.TestLogger {
	if o.output != "text" {
		return runner.NewSilentLogger(o.verbose, o.debug)
	}
	return runner.NewStdoutLogger(o.verbose, o.debug)
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run test scenarios",
		Long: `Run loads the scenarios found in the given files and directories and
executes every test case against fresh test contexts. Queues and endpoints
declared in the config file are shared by all cases of the run.

When no paths are given, the scenarios listed in the config file are used.

Example usage:
  rehearse run scenarios/                  # Run every scenario in a directory
  rehearse run --scenario=order-roundtrip  # Run one case by name
  rehearse run --tag=smoke --parallel=4    # Run tagged cases on 4 workers
  rehearse run --output=json > result.json # Machine readable result
  rehearse run --watch scenarios/          # Re-run when a scenario changes`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.parallel < 1 || opts.parallel > maxParallel {
				return fmt.Errorf("parallel workers must be between 1 and %d, got %d", maxParallel, opts.parallel)
			}
			for _, f := range outputFormats {
				if opts.output == f {
					return nil
				}
			}
			return fmt.Errorf("invalid output '%s', must be one of: %s", opts.output, strings.Join(outputFormats, ", "))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to the configuration file (default: rehearse.yaml)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Overall test execution timeout")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, fmt.Sprintf("Number of parallel test workers (1-%d)", maxParallel))
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Stop starting new cases after the first failure")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose test output")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Directory to save a JSON report into")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format (text, json, quiet)")
	cmd.Flags().StringVar(&opts.scenario, "scenario", "", "Run a single test case by name")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "Run only cases carrying any of these tags")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run when a scenario or the config file changes")
	cmd.Flags().DurationVar(&opts.debounce, "watch-debounce", 500*time.Millisecond, "How long to wait for further changes before re-running")

	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return outputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("scenario", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeScenarios(opts.configPath, args), cobra.ShellCompDirectiveNoFileComp
	})
	cmd.MarkFlagsMutuallyExclusive("watch", "fail-fast")

	return cmd
}

// completeScenarios lists case names for shell completion. Errors yield no
// completions.
func completeScenarios(configPath string, args []string) []string {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil
	}
	paths, err := scenarioPaths(args, cfg, configPath)
	if err != nil {
		return nil
	}
	cases, _ := loadCases(paths, false, nil)
	return scenario.Names(cases)
}

func runScenarios(cmd *cobra.Command, opts *runOptions, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	initLogging(opts.debug, cmd.ErrOrStderr())

	if opts.watch {
		return watchScenarios(ctx, cmd.OutOrStdout(), opts, args)
	}
	return runOnce(ctx, cmd.OutOrStdout(), opts, args)
}

// runOnce loads configuration and scenarios from disk and executes the
// selected cases. A suite with failures returns a *testsFailedError.
func runOnce(ctx context.Context, out io.Writer, opts *runOptions, args []string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return reportConfigError(out, err)
	}

	paths, err := scenarioPaths(args, cfg, opts.configPath)
	if err != nil {
		return err
	}

	logger := opts.logger()
	cases, err := loadCases(paths, opts.debug, logger)
	if err != nil {
		return reportConfigError(out, err)
	}

	rc := opts.configuration(cfg.Defaults.CaseTimeout)
	cases = scenario.Filter(cases, rc)
	if len(cases) == 0 {
		fmt.Fprintf(out, "⚠️  No test scenarios matched in %s\n", strings.Join(paths, ", "))
		return nil
	}

	factory, err := newFactory(cfg, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	reporter, err := runner.NewReporter(opts.output, out, opts.verbose, opts.debug, opts.reportPath)
	if err != nil {
		return err
	}

	r := runner.New(factory, reporter,
		runner.WithLogger(logger),
		runner.WithAsyncGrace(cfg.Defaults.AsyncGrace),
	)
	warnings, removeSink := collectWarnings()
	result, err := r.Run(ctx, rc, cases)
	removeSink()
	if opts.output == "text" {
		warnings.Print(out, maxListedWarnings)
	}
	if err != nil {
		return fmt.Errorf("test execution failed: %w", err)
	}
	if !result.Succeeded() {
		return &testsFailedError{failed: result.FailedCases + result.ErrorCases, total: result.TotalCases}
	}
	return nil
}

// reportConfigError prints the detailed report of a configuration error
// collection before handing the error back.
func reportConfigError(out io.Writer, err error) error {
	if report, ok := detailedReport(err); ok {
		fmt.Fprintln(out, report)
	}
	return err
}

func detailedReport(err error) (string, bool) {
	var collection *config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return collection.GetDetailedReport(), true
	}
	var value config.ConfigurationErrorCollection
	if errors.As(err, &value) {
		return value.GetDetailedReport(), true
	}
	return "", false
}

func pluralCases(n, total int) string {
	if total == 1 {
		return fmt.Sprintf("%d/%d test case", n, total)
	}
	return fmt.Sprintf("%d/%d test cases", n, total)
}
