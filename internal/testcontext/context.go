package testcontext

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"rehearse/internal/expression"
	"rehearse/internal/functions"
	"rehearse/internal/matcher"
	"rehearse/internal/queue"
	"rehearse/internal/selector"
	"rehearse/internal/store"
	"rehearse/internal/template"
)

// Defaults are the timing defaults actions fall back to when a scenario does
// not set its own.
type Defaults struct {
	ReceiveTimeout  time.Duration
	PollingInterval time.Duration
	WaitTimeout     time.Duration
	WaitInterval    time.Duration
}

// DefaultDefaults returns the built-in timing defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		ReceiveTimeout:  5 * time.Second,
		PollingInterval: queue.DefaultPollingInterval,
		WaitTimeout:     5 * time.Second,
		WaitInterval:    time.Second,
	}
}

// AsyncFailure is a failure raised on a detached async branch.
type AsyncFailure struct {
	Action string
	Err    error
	At     time.Time
}

// Context is the mutable environment of one test case run. It is shared by
// reference across all actions and branches of that run.
type Context struct {
	mu        sync.RWMutex
	variables map[string]interface{}

	functions  *functions.Registry
	matchers   *matcher.Registry
	selectors  *selector.FactoryRegistry
	queues     *queue.Registry
	references *References
	store      store.Store
	timers     *Timers
	engine     *template.Engine
	clock      clockwork.Clock
	defaults   Defaults
	namespaces map[string]string

	asyncMu       sync.Mutex
	asyncFailures []AsyncFailure
	asyncRunning  sync.WaitGroup
}

// SetVariable binds name to value.
func (c *Context) SetVariable(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variable returns the value bound to name.
func (c *Context) Variable(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// VariableString returns the string form of the value bound to name.
func (c *Context) VariableString(name string) (string, bool) {
	v, ok := c.Variable(name)
	if !ok {
		return "", false
	}
	return template.Stringify(v), true
}

// VariableOr returns the value bound to name or fallback.
func (c *Context) VariableOr(name string, fallback interface{}) interface{} {
	if v, ok := c.Variable(name); ok {
		return v
	}
	return fallback
}

// HasVariable reports whether name is bound.
func (c *Context) HasVariable(name string) bool {
	_, ok := c.Variable(name)
	return ok
}

// Variables returns a snapshot copy of all bindings.
func (c *Context) Variables() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// VariableNames returns the bound names in sorted order.
func (c *Context) VariableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.variables))
	for k := range c.variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ReplaceDynamicContent resolves ${variable} placeholders and then library
// function calls in s.
func (c *Context) ReplaceDynamicContent(s string) (string, error) {
	replaced, err := c.engine.ReplaceString(s, c.Variables())
	if err != nil {
		return "", err
	}
	return c.functions.Resolve(replaced)
}

// ReplaceDynamicContentIn resolves dynamic content in every string nested in
// value (maps and slices are walked).
func (c *Context) ReplaceDynamicContentIn(value interface{}) (interface{}, error) {
	replaced, err := c.engine.Replace(value, c.Variables())
	if err != nil {
		return nil, err
	}
	return c.resolveFunctionsIn(replaced)
}

func (c *Context) resolveFunctionsIn(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return c.functions.Resolve(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			r, err := c.resolveFunctionsIn(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			r, err := c.functions.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			r, err := c.resolveFunctionsIn(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

// EvaluateCondition resolves dynamic content in expr and evaluates it as a
// boolean expression.
func (c *Context) EvaluateCondition(expr string) (bool, error) {
	resolved, err := c.ReplaceDynamicContent(expr)
	if err != nil {
		return false, err
	}
	ok, err := expression.Evaluate(resolved)
	if err != nil {
		return false, fmt.Errorf("invalid condition '%s': %w", expr, err)
	}
	return ok, nil
}

// Functions returns the function library registry.
func (c *Context) Functions() *functions.Registry { return c.functions }

// Matchers returns the validation matcher registry.
func (c *Context) Matchers() *matcher.Registry { return c.matchers }

// Selectors returns the selector factory registry.
func (c *Context) Selectors() *selector.FactoryRegistry { return c.selectors }

// Queues returns the message queue registry.
func (c *Context) Queues() *queue.Registry { return c.queues }

// References returns the named component registry.
func (c *Context) References() *References { return c.references }

// MessageStore returns the message store of this run.
func (c *Context) MessageStore() store.Store { return c.store }

// Timers returns the forked timers of this run.
func (c *Context) Timers() *Timers { return c.timers }

// Clock returns the clock used for sleeps and polling.
func (c *Context) Clock() clockwork.Clock { return c.clock }

// Defaults returns the timing defaults.
func (c *Context) Defaults() Defaults { return c.defaults }

// SetNamespace binds an XML namespace prefix to a URI.
func (c *Context) SetNamespace(prefix, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces[prefix] = uri
}

// Namespaces returns a copy of the namespace context.
func (c *Context) Namespaces() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.namespaces))
	for k, v := range c.namespaces {
		out[k] = v
	}
	return out
}

// ExpandQName turns prefix:local into {uri}local using the namespace
// context. Names without a known prefix are returned unchanged.
func (c *Context) ExpandQName(name string) string {
	prefix, local, ok := strings.Cut(name, ":")
	if !ok || strings.HasPrefix(name, "{") {
		return name
	}
	c.mu.RLock()
	uri, known := c.namespaces[prefix]
	c.mu.RUnlock()
	if !known {
		return name
	}
	return "{" + uri + "}" + local
}

// StartAsync marks the start of a detached branch. The returned function
// must be called when the branch finishes.
func (c *Context) StartAsync() func() {
	c.asyncRunning.Add(1)
	return c.asyncRunning.Done
}

// WaitAsync waits until all detached branches have finished or ctx is done.
// It reports whether all branches finished.
func (c *Context) WaitAsync(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.asyncRunning.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// RecordAsyncFailure logs a failure raised on a detached branch.
func (c *Context) RecordAsyncFailure(action string, err error) {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	c.asyncFailures = append(c.asyncFailures, AsyncFailure{Action: action, Err: err, At: c.clock.Now()})
}

// AsyncFailures returns the failures recorded so far.
func (c *Context) AsyncFailures() []AsyncFailure {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	return append([]AsyncFailure(nil), c.asyncFailures...)
}
