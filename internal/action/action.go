// Package action implements test actions and the containers that compose
// them.
//
// Leaf actions (echo, sleep, send, receive, ...) do one thing against the
// test context. Containers own an ordered list of child actions and a
// control-flow strategy: sequence, parallel, async, iterate, repeat, timer,
// catch, assert and wait.
//
// Every failure returned by an action is attributed to the action that
// raised it. Containers pass child failures through unchanged, except
// Parallel, which folds several branch failures into one aggregate, and
// Catch and Assert, which reinterpret them.
package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// Action is a unit of test execution.
type Action interface {
	Name() string
	Execute(ctx context.Context, tc *testcontext.Context) error
}

// Container is an action holding child actions.
type Container interface {
	Action
	Actions() []Action
	AddActions(actions ...Action)
}

// Meta holds the descriptive fields shared by all actions.
type Meta struct {
	// Label overrides the default action name in failures and reports.
	Label       string
	Description string
}

func (m Meta) nameOr(kind string) string {
	if m.Label != "" {
		return m.Label
	}
	return kind
}

// Children is the ordered child list embedded by containers.
type Children struct {
	List []Action
}

// Actions returns the child actions.
func (c *Children) Actions() []Action {
	return c.List
}

// AddActions appends child actions.
func (c *Children) AddActions(actions ...Action) {
	c.List = append(c.List, actions...)
}

// Func wraps a Go function as an action.
type Func struct {
	Meta
	Fn func(ctx context.Context, tc *testcontext.Context) error
}

// Name implements Action.
func (a *Func) Name() string { return a.nameOr("func") }

// Execute implements Action.
func (a *Func) Execute(ctx context.Context, tc *testcontext.Context) error {
	if a.Fn == nil {
		return nil
	}
	return failure.Wrap(a.Name(), a.Fn(ctx, tc))
}

// runAll executes actions in order and stops at the first failure.
func runAll(ctx context.Context, tc *testcontext.Context, actions []Action) error {
	for _, a := range actions {
		if err := checkContext(ctx); err != nil {
			return err
		}
		if err := execute(ctx, tc, a); err != nil {
			return err
		}
	}
	return nil
}

// execute runs a single action, turning a panic into a failure attributed
// to that action.
func execute(ctx context.Context, tc *testcontext.Context, a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.Wrap(a.Name(), failure.New("panic: %v", r))
		}
	}()

	logging.Debug("Action", "Executing %s", a.Name())
	return a.Execute(ctx, tc)
}

func checkContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return failure.Timeout("test case deadline exceeded")
	default:
		return failure.New("test case cancelled")
	}
}

// ParseDuration accepts Go durations ("1.5s") and plain integers, which are
// read as milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s'", s)
	}
	return d, nil
}
