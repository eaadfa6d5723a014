package action

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"rehearse/internal/endpoint"
	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
)

func newContext(t *testing.T) *testcontext.Context {
	t.Helper()
	f := testcontext.NewFactory(testcontext.WithDefaults(testcontext.Defaults{
		ReceiveTimeout:  time.Second,
		PollingInterval: 5 * time.Millisecond,
		WaitTimeout:     time.Second,
		WaitInterval:    10 * time.Millisecond,
	}))
	f.References.Bind("orders", endpoint.NewDirect("orders", endpoint.DirectConfig{
		Queue:   "orders",
		Timeout: 200 * time.Millisecond,
	}))
	return f.NewContext()
}

// counter is an action that counts its executions and optionally fails.
type counter struct {
	label string
	calls atomic.Int32
	err   error
}

func (c *counter) Name() string { return c.label }

func (c *counter) Execute(ctx context.Context, tc *testcontext.Context) error {
	c.calls.Add(1)
	if c.err != nil {
		return failure.Wrap(c.label, c.err)
	}
	return nil
}

func (c *counter) count() int { return int(c.calls.Load()) }

func ok(label string) *counter { return &counter{label: label} }

func failing(label, msg string) *counter {
	return &counter{label: label, err: failure.New("%s", msg)}
}
