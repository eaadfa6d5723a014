package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"rehearse/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeTestsFailed indicates the suite ran but at least one case did not pass.
	ExitCodeTestsFailed = 2
	// ExitCodeConfigInvalid indicates a configuration or scenario file is invalid.
	ExitCodeConfigInvalid = 3
)

// rootCmd represents the base command for the rehearse application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rehearse",
	Short: "Run declarative messaging integration tests",
	Long: `rehearse executes integration test cases written as YAML scenarios.
A scenario sends messages to logical endpoints, receives and validates the
replies, and drives control flow with sequence, parallel, async, iterate,
repeat, timer, catch and wait containers. Messages travel over in-process
queues with selector filtering and request/reply correlation.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "rehearse version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// testsFailedError reports a suite that ran to completion with failures.
type testsFailedError struct {
	failed int
	total  int
}

func (e *testsFailedError) Error() string {
	return pluralCases(e.failed, e.total) + " did not pass"
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var failed *testsFailedError
	if errors.As(err, &failed) {
		return ExitCodeTestsFailed
	}

	var collection *config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return ExitCodeConfigInvalid
	}
	var collectionValue config.ConfigurationErrorCollection
	if errors.As(err, &collectionValue) {
		return ExitCodeConfigInvalid
	}
	var single config.ConfigurationError
	if errors.As(err, &single) {
		return ExitCodeConfigInvalid
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
}
