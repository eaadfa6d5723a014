package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/config"
)

func TestValidateScenarios(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"pass.yaml": passingScenario,
		"fail.yaml": failingScenario,
	})

	var out bytes.Buffer
	err := validateScenarios(&out, &validateOptions{configPath: filepath.Join(dir, config.DefaultConfigFile)}, nil)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "Configuration valid (1 queues, 1 endpoints)")
	assert.Contains(t, output, "2 scenarios valid")
	assert.Contains(t, output, "roundtrip")
	assert.Contains(t, output, "broken")
}

func TestValidateReportsProblems(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"bad.yaml": "name: bad\nactions:\n  - echo: hi\n  - receive: {endpoint: orders, bogus: 1}\n",
	})

	var out bytes.Buffer
	err := validateScenarios(&out, &validateOptions{configPath: filepath.Join(dir, config.DefaultConfigFile)}, nil)
	require.Error(t, err)
	assert.Equal(t, ExitCodeConfigInvalid, getExitCode(err))
	assert.Contains(t, out.String(), "Detailed Configuration Error Report")
	assert.Contains(t, out.String(), "unknown field 'bogus'")
}

func TestValidateListsKinds(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateScenarios(&out, &validateOptions{kinds: true}, nil))

	for _, kind := range []string{"send", "receive", "parallel", "wait"} {
		assert.Contains(t, out.String(), kind)
	}
}
