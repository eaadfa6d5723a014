package action

import (
	"context"
	"strings"
	"time"

	"rehearse/internal/failure"
	"rehearse/internal/poll"
	"rehearse/internal/selector"
	"rehearse/internal/template"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// Echo logs a message with dynamic content resolved.
type Echo struct {
	Meta
	Message string
}

func (a *Echo) Name() string { return a.nameOr("echo") }

func (a *Echo) Execute(ctx context.Context, tc *testcontext.Context) error {
	msg, err := tc.ReplaceDynamicContent(a.Message)
	if err != nil {
		return failure.Wrap(a.Name(), failure.Configuration("%v", err))
	}
	logging.Info("Echo", "%s", msg)
	return nil
}

// Sleep pauses the calling branch.
type Sleep struct {
	Meta
	Duration time.Duration
	// Expression, when set, is resolved and parsed at execution time and
	// takes precedence over Duration, e.g. "${delay}".
	Expression string
}

func (a *Sleep) Name() string { return a.nameOr("sleep") }

func (a *Sleep) Execute(ctx context.Context, tc *testcontext.Context) error {
	d := a.Duration
	if a.Expression != "" {
		resolved, err := tc.ReplaceDynamicContent(a.Expression)
		if err != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", err))
		}
		if d, err = ParseDuration(resolved); err != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", err))
		}
	}

	logging.Debug("Sleep", "Sleeping %s", d)
	if err := poll.Sleep(ctx, tc.Clock(), d); err != nil {
		return failure.Wrap(a.Name(), checkContext(ctx))
	}
	return nil
}

// Fail always fails with Message.
type Fail struct {
	Meta
	Message string
}

func (a *Fail) Name() string { return a.nameOr("fail") }

func (a *Fail) Execute(ctx context.Context, tc *testcontext.Context) error {
	msg, err := tc.ReplaceDynamicContent(a.Message)
	if err != nil {
		msg = a.Message
	}
	if msg == "" {
		msg = "generated error to interrupt test execution"
	}
	return failure.Wrap(a.Name(), failure.New("%s", msg))
}

// Variable is a name/value pair; the value may contain dynamic content.
type Variable struct {
	Name  string
	Value interface{}
}

// CreateVariables binds variables in declaration order, so later values can
// refer to earlier ones.
type CreateVariables struct {
	Meta
	Variables []Variable
}

func (a *CreateVariables) Name() string { return a.nameOr("create-variables") }

func (a *CreateVariables) Execute(ctx context.Context, tc *testcontext.Context) error {
	for _, v := range a.Variables {
		value, err := tc.ReplaceDynamicContentIn(v.Value)
		if err != nil {
			return failure.Wrap(a.Name(), failure.Configuration("variable '%s': %v", v.Name, err))
		}
		logging.Debug("Variables", "Setting variable %s = %s", v.Name, template.Stringify(value))
		tc.SetVariable(v.Name, value)
	}
	return nil
}

// TraceVariables logs variables, all of them when Names is empty.
type TraceVariables struct {
	Meta
	Names []string
}

func (a *TraceVariables) Name() string { return a.nameOr("trace-variables") }

func (a *TraceVariables) Execute(ctx context.Context, tc *testcontext.Context) error {
	names := a.Names
	if len(names) == 0 {
		names = tc.VariableNames()
	}
	for _, name := range names {
		v, ok := tc.Variable(name)
		if !ok {
			logging.Info("Variables", "%s is not set", name)
			continue
		}
		logging.Info("Variables", "%s = %s", name, template.Stringify(v))
	}
	return nil
}

// StopTimer stops a forked timer by id.
type StopTimer struct {
	Meta
	TimerID string
}

func (a *StopTimer) Name() string { return a.nameOr("stop-timer") }

func (a *StopTimer) Execute(ctx context.Context, tc *testcontext.Context) error {
	id, err := tc.ReplaceDynamicContent(a.TimerID)
	if err != nil {
		return failure.Wrap(a.Name(), failure.Configuration("%v", err))
	}
	logging.Debug("Timer", "Stopping timer %s", id)
	return failure.Wrap(a.Name(), tc.Timers().Stop(id))
}

// PurgeQueues removes pending messages from queues, optionally only those
// matching Selector.
type PurgeQueues struct {
	Meta
	Queues   []string
	Selector string
}

func (a *PurgeQueues) Name() string { return a.nameOr("purge-queues") }

func (a *PurgeQueues) Execute(ctx context.Context, tc *testcontext.Context) error {
	var sel selector.Selector
	if strings.TrimSpace(a.Selector) != "" {
		expr, err := tc.ReplaceDynamicContent(a.Selector)
		if err != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", err))
		}
		if sel, err = selector.Parse(expr, tc.Selectors(), tc.Matchers()); err != nil {
			return failure.Wrap(a.Name(), err)
		}
	}

	for _, name := range a.Queues {
		name, err := tc.ReplaceDynamicContent(name)
		if err != nil {
			return failure.Wrap(a.Name(), failure.Configuration("%v", err))
		}
		n := tc.Queues().Get(name).Purge(sel)
		logging.Debug("Purge", "Purged %d messages from queue %s", n, name)
	}
	return nil
}
