package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/action"
	"rehearse/internal/config"
	"rehearse/internal/endpoint"
	"rehearse/internal/failure"
	"rehearse/internal/runner"
	"rehearse/internal/testcontext"
)

func TestLoadDirectory(t *testing.T) {
	cases, err := NewLoader(false, nil).Load("testdata")
	require.NoError(t, err)
	require.Len(t, cases, 3)

	assert.Equal(t, []string{"order-roundtrip", "selector-map", "not-ready"}, Names(cases))
	assert.Equal(t, []string{"orders", "smoke"}, Tags(cases))

	first := cases[0]
	assert.Equal(t, 10*time.Second, first.Timeout)
	assert.Equal(t, filepath.Join("testdata", "orders.yaml"), first.Source)
	require.Len(t, first.Variables, 2)
	assert.Equal(t, "prefix", first.Variables[0].Name)
	assert.Equal(t, "orderId", first.Variables[1].Name)
	require.Len(t, first.Actions, 5)
	require.Len(t, first.Finally, 1)

	receive, ok := first.Actions[2].(*action.Receive)
	require.True(t, ok)
	assert.Equal(t, time.Second, receive.Timeout)
	assert.Equal(t, "operation = 'create'", receive.Selector)
	assert.Equal(t, map[string]string{"$.status": "status"}, receive.Extract.JSONPaths)

	assert.True(t, cases[2].Skip)
}

func TestLoadedScenariosRun(t *testing.T) {
	cases, err := NewLoader(false, nil).Load(filepath.Join("testdata", "orders.yaml"))
	require.NoError(t, err)

	f := testcontext.NewFactory(testcontext.WithDefaults(testcontext.Defaults{
		ReceiveTimeout:  time.Second,
		PollingInterval: 5 * time.Millisecond,
		WaitTimeout:     time.Second,
		WaitInterval:    10 * time.Millisecond,
	}))
	f.References.Bind("orders", endpoint.NewDirect("orders", endpoint.DirectConfig{Queue: "orders", Timeout: time.Second}))

	suite, err := runner.New(f, nil).Run(context.Background(), runner.Configuration{}, cases)
	require.NoError(t, err)
	for _, cr := range suite.CaseResults {
		assert.Equal(t, runner.ResultPassed, cr.Result, "%s: %s", cr.Case.Name, cr.Error)
	}
}

func TestParseActionKinds(t *testing.T) {
	data := []byte(`
name: kinds
actions:
  - sleep: 10
  - sleep: ${delay}
  - trace-variables: [a, b]
  - stop-timer: beat
  - repeat:
      condition: i gt 2
      actions: [{echo: hi}]
  - repeat-on-error:
      maxAttempts: 3
      autoSleep: 5ms
      actions: [{fail: boom}]
  - timer:
      id: beat
      fork: true
      interval: 1s
      actions: [{echo: tick}]
  - catch:
      kind: validation
      actions: [{fail: x}]
  - async:
      actions: [{echo: bg}]
      error: [{echo: failed}]
  - wait:
      http: {url: "http://localhost:8080/health", method: get}
      timeout: 2s
  - wait:
      action: {echo: probe}
  - sequence:
      name: nested
      actions: [{echo: inner}]
`)
	cases, err := Parse(data, "kinds.yaml")
	require.NoError(t, err)
	require.Len(t, cases, 1)
	acts := cases[0].Actions
	require.Len(t, acts, 12)

	assert.Equal(t, 10*time.Millisecond, acts[0].(*action.Sleep).Duration)
	assert.Equal(t, "${delay}", acts[1].(*action.Sleep).Expression)
	assert.Equal(t, []string{"a", "b"}, acts[2].(*action.TraceVariables).Names)

	repeat := acts[4].(*action.RepeatUntilTrue)
	assert.Equal(t, 1, repeat.Start)

	roe := acts[5].(*action.RepeatOnError)
	assert.Equal(t, 3, roe.MaxAttempts)
	assert.Equal(t, 5*time.Millisecond, roe.AutoSleep)
	assert.Equal(t, 1, roe.Start)

	timer := acts[6].(*action.Timer)
	assert.True(t, timer.Fork)
	assert.Equal(t, time.Second, timer.Interval)

	assert.Equal(t, failure.KindValidation, acts[7].(*action.Catch).Kind)
	assert.Len(t, acts[8].(*action.Async).Error, 1)

	httpWait := acts[9].(*action.Wait)
	cond := httpWait.Condition.(*action.HTTPCondition)
	assert.Equal(t, "GET", cond.Method)
	assert.Equal(t, 2*time.Second, httpWait.Timeout)

	_, ok := acts[10].(*action.Wait).Condition.(*action.ActionCondition)
	assert.True(t, ok)
	assert.Equal(t, "nested", acts[11].Name())
}

func TestParseReportsEveryProblem(t *testing.T) {
	data := []byte(`
name: broken
actions:
  - teleport: {to: mars}
  - send: {message: {payload: x}}
  - receive: {endpoint: q, selectr: "a = 'b'"}
  - wait: {timeout: 1s}
  - catch: {kind: weird, actions: []}
  - echo: one
    sleep: 2
`)
	_, err := Parse(data, "broken.yaml")
	require.Error(t, err)

	var errs *config.ConfigurationErrorCollection
	require.ErrorAs(t, err, &errs)
	require.Equal(t, 6, errs.Count())

	report := errs.GetDetailedReport()
	assert.Contains(t, report, "unknown action kind 'teleport'")
	assert.Contains(t, report, "field 'endpoint': is required for send")
	assert.Contains(t, report, "unknown field 'selectr'")
	assert.Contains(t, report, "exactly one of message, file, http or action")
	assert.Contains(t, report, `unknown failure kind "weird"`)
	assert.Contains(t, report, "exactly one key")
	assert.Equal(t, 4, errs.Errors[0].LineNumber)
}

func TestParseRequiresNameAndActions(t *testing.T) {
	_, err := Parse([]byte("description: nothing\n"), "empty.yaml")
	require.Error(t, err)
	assert.Contains(t, err.(*config.ConfigurationErrorCollection).GetDetailedReport(), "is required for scenario")

	_, err = Parse([]byte("name: [unclosed\n"), "bad.yaml")
	require.Error(t, err)
	assert.Equal(t, "parse", err.(*config.ConfigurationErrorCollection).Errors[0].ErrorType)
}

func TestLoadDuplicateNamesAndMissingPath(t *testing.T) {
	dir := t.TempDir()
	doc := []byte("name: same\nactions:\n  - echo: hi\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), doc, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), doc, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	cases, err := NewLoader(false, nil).Load(dir, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Len(t, cases, 2)

	errs := err.(*config.ConfigurationErrorCollection)
	require.Equal(t, 2, errs.Count())
	assert.Contains(t, errs.Errors[0].Message, "does not exist")
	assert.Contains(t, errs.Errors[1].Message, "duplicate scenario name 'same'")
}

func TestFilter(t *testing.T) {
	cases := []runner.TestCase{
		{Name: "a", Tags: []string{"smoke"}},
		{Name: "b", Tags: []string{"slow"}},
		{Name: "c"},
	}

	assert.Len(t, Filter(cases, runner.Configuration{}), 3)
	assert.Equal(t, []string{"b"}, Names(Filter(cases, runner.Configuration{Scenario: "b"})))
	assert.Equal(t, []string{"a", "b"}, Names(Filter(cases, runner.Configuration{Tags: []string{"smoke", "slow"}})))
	assert.Empty(t, Filter(cases, runner.Configuration{Scenario: "a", Tags: []string{"slow"}}))
}
