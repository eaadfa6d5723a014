package action

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"rehearse/internal/failure"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// Condition is probed by the Wait container.
type Condition interface {
	// Name describes the condition in logs.
	Name() string
	Satisfied(ctx context.Context, tc *testcontext.Context) bool
	SuccessMessage(tc *testcontext.Context) string
	ErrorMessage(tc *testcontext.Context) string
}

// Wait probes Condition every Interval until it holds or Timeout elapses.
// A probe that outlives the interval is not abandoned: the next probe only
// starts after it returned, so probes never overlap.
type Wait struct {
	Meta
	Condition Condition
	Timeout   time.Duration
	Interval  time.Duration
}

func (a *Wait) Name() string { return a.nameOr("wait") }

func (a *Wait) Execute(ctx context.Context, tc *testcontext.Context) error {
	if a.Condition == nil {
		return failure.Wrap(a.Name(), failure.Configuration("wait requires a condition"))
	}

	defaults := tc.Defaults()
	timeout, interval := a.Timeout, a.Interval
	if timeout <= 0 {
		timeout = defaults.WaitTimeout
	}
	if interval <= 0 {
		interval = defaults.WaitInterval
	}
	if interval <= 0 {
		interval = time.Second
	}

	clock := tc.Clock()
	deadline := clock.Now().Add(timeout)
	logging.Debug("Wait", "Waiting for %s (timeout %s, interval %s)", a.Condition.Name(), timeout, interval)

	var pending chan bool
	for {
		if pending == nil {
			pending = make(chan bool, 1)
			go func(result chan<- bool) {
				result <- a.probe(ctx, tc)
			}(pending)
		}

		wait := interval
		if remaining := deadline.Sub(clock.Now()); remaining < wait {
			wait = remaining
		}
		tick := clock.After(max(wait, 0))

		select {
		case ok := <-pending:
			pending = nil
			if ok {
				logging.Info("Wait", "%s", a.Condition.SuccessMessage(tc))
				return nil
			}
			if !clock.Now().Before(deadline) {
				return a.timeout(tc, timeout)
			}
			select {
			case <-tick:
			case <-ctx.Done():
				return failure.Wrap(a.Name(), checkContext(ctx))
			}
		case <-tick:
			// the probe is still running; keep waiting for it
		case <-ctx.Done():
			return failure.Wrap(a.Name(), checkContext(ctx))
		}

		if !clock.Now().Before(deadline) && pending != nil {
			select {
			case ok := <-pending:
				if ok {
					logging.Info("Wait", "%s", a.Condition.SuccessMessage(tc))
					return nil
				}
			default:
			}
			return a.timeout(tc, timeout)
		}
	}
}

func (a *Wait) probe(ctx context.Context, tc *testcontext.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Wait", "Probe of %s panicked: %v", a.Condition.Name(), r)
			ok = false
		}
	}()
	return a.Condition.Satisfied(ctx, tc)
}

func (a *Wait) timeout(tc *testcontext.Context, timeout time.Duration) error {
	return failure.Wrap(a.Name(), failure.Timeout("%s within %s", a.Condition.ErrorMessage(tc), timeout))
}

// MessageCondition holds once a message with the given name is in the
// message store.
type MessageCondition struct {
	MessageName string
}

func (c *MessageCondition) Name() string { return "message " + c.MessageName }

func (c *MessageCondition) Satisfied(ctx context.Context, tc *testcontext.Context) bool {
	name, err := tc.ReplaceDynamicContent(c.MessageName)
	if err != nil {
		return false
	}
	_, ok := tc.MessageStore().GetMessage(name)
	return ok
}

func (c *MessageCondition) SuccessMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("Message condition success - message '%s' is present", c.MessageName)
}

func (c *MessageCondition) ErrorMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("failed to find message '%s' in message store", c.MessageName)
}

// FileCondition holds once a regular file exists at Path.
type FileCondition struct {
	Path string
}

func (c *FileCondition) Name() string { return "file " + c.Path }

func (c *FileCondition) Satisfied(ctx context.Context, tc *testcontext.Context) bool {
	path, err := tc.ReplaceDynamicContent(c.Path)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (c *FileCondition) SuccessMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("File condition success - file '%s' exists", c.Path)
}

func (c *FileCondition) ErrorMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("failed to find file '%s'", c.Path)
}

// HTTPCondition holds once URL answers Method with Status.
type HTTPCondition struct {
	URL string
	// Method defaults to HEAD.
	Method string
	// Status defaults to 200.
	Status int
	// RequestTimeout bounds a single probe request.
	RequestTimeout time.Duration
	Client         *http.Client

	mu   sync.Mutex
	last string
}

func (c *HTTPCondition) Name() string { return "http " + c.URL }

func (c *HTTPCondition) Satisfied(ctx context.Context, tc *testcontext.Context) bool {
	url, err := tc.ReplaceDynamicContent(c.URL)
	if err != nil {
		c.remember(err.Error())
		return false
	}
	method := c.Method
	if method == "" {
		method = http.MethodHead
	}
	want := c.Status
	if want == 0 {
		want = http.StatusOK
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	reqCtx := ctx
	if c.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		c.remember(err.Error())
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		c.remember(err.Error())
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		c.remember(fmt.Sprintf("status %d", resp.StatusCode))
		return false
	}
	return true
}

func (c *HTTPCondition) remember(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
}

func (c *HTTPCondition) SuccessMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("HTTP condition success - '%s' is reachable", c.URL)
}

func (c *HTTPCondition) ErrorMessage(tc *testcontext.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == "" {
		return fmt.Sprintf("failed to reach '%s'", c.URL)
	}
	return fmt.Sprintf("failed to reach '%s' (last result: %s)", c.URL, c.last)
}

// ActionCondition holds once Action runs without failure.
type ActionCondition struct {
	Action Action

	mu   sync.Mutex
	last error
}

func (c *ActionCondition) Name() string { return "action " + c.Action.Name() }

func (c *ActionCondition) Satisfied(ctx context.Context, tc *testcontext.Context) bool {
	err := execute(ctx, tc, c.Action)
	c.mu.Lock()
	c.last = err
	c.mu.Unlock()
	return err == nil
}

func (c *ActionCondition) SuccessMessage(tc *testcontext.Context) string {
	return fmt.Sprintf("Action condition success - action '%s' succeeded", c.Action.Name())
}

func (c *ActionCondition) ErrorMessage(tc *testcontext.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return fmt.Sprintf("action '%s' did not succeed", c.Action.Name())
	}
	return fmt.Sprintf("action '%s' did not succeed: %v", c.Action.Name(), c.last)
}
