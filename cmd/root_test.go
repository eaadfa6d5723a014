package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/config"
)

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "rehearse", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "rehearse version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())

	assert.Equal(t, "rehearse version 1.0.0\n", buf.String())
}

func TestSubcommands(t *testing.T) {
	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "run", "validate"} {
		assert.True(t, found[name], "expected subcommand %s", name)
	}
}

func TestGetExitCode(t *testing.T) {
	collection := config.NewConfigurationErrorCollection()
	collection.AddError("a.yaml", "a.yaml", "scenario", "actions", "validation", "bad")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"general error", errors.New("boom"), ExitCodeError},
		{"tests failed", &testsFailedError{failed: 1, total: 2}, ExitCodeTestsFailed},
		{"wrapped tests failed", fmt.Errorf("run: %w", &testsFailedError{failed: 1, total: 1}), ExitCodeTestsFailed},
		{"scenario errors", collection, ExitCodeConfigInvalid},
		{"config errors", *collection, ExitCodeConfigInvalid},
		{"single config error", config.NewConfigurationError("c.yaml", "c.yaml", "config", "queues", "validation", "bad"), ExitCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}

func TestTestsFailedError(t *testing.T) {
	assert.Equal(t, "1/1 test case did not pass", (&testsFailedError{failed: 1, total: 1}).Error())
	assert.Equal(t, "2/5 test cases did not pass", (&testsFailedError{failed: 2, total: 5}).Error())
}
