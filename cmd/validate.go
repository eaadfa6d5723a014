package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"rehearse/internal/runner"
	"rehearse/internal/scenario"
	pkgstrings "rehearse/pkg/strings"
)

type validateOptions struct {
	configPath string
	debug      bool
	kinds      bool
}

func newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Validate the config file and scenarios without running them",
		Long: `Validate loads the config file and every scenario found in the given
files and directories, reporting all problems at once with file and line
information. Nothing is executed.

Example usage:
  rehearse validate scenarios/      # Check every scenario in a directory
  rehearse validate --kinds         # List the action kinds scenarios may use`,
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(opts.debug, cmd.ErrOrStderr())
			return validateScenarios(cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to the configuration file (default: rehearse.yaml)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.kinds, "kinds", false, "List the supported action kinds and exit")

	return cmd
}

func validateScenarios(out io.Writer, opts *validateOptions, args []string) error {
	if opts.kinds {
		fmt.Fprintln(out, strings.Join(scenario.Kinds(), "\n"))
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return reportConfigError(out, err)
	}
	fmt.Fprintf(out, "✅ Configuration valid (%d queues, %d endpoints)\n", len(cfg.Queues), len(cfg.Endpoints))

	paths, err := scenarioPaths(args, cfg, opts.configPath)
	if err != nil {
		return err
	}

	var logger runner.TestLogger
	if opts.debug {
		logger = runner.NewStdoutLogger(false, true)
	}
	cases, err := loadCases(paths, opts.debug, logger)
	if err != nil {
		return reportConfigError(out, err)
	}

	fmt.Fprintf(out, "✅ %d scenarios valid\n", len(cases))
	if len(cases) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Scenario", "Description", "Tags", "Actions", "Finally", "Source"})
	for _, c := range cases {
		tags := stringOrDash(strings.Join(c.Tags, ", "))
		t.AppendRow(table.Row{c.Name, stringOrDash(pkgstrings.Summarize(c.Description, 40)), tags, len(c.Actions), len(c.Finally), c.Source})
	}
	t.Render()
	return nil
}

func stringOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
