package testcontext

import (
	"github.com/jonboulle/clockwork"

	"rehearse/internal/functions"
	"rehearse/internal/matcher"
	"rehearse/internal/queue"
	"rehearse/internal/selector"
	"rehearse/internal/store"
	"rehearse/internal/template"
)

// Factory owns the process-wide registries and builds one Context per test
// case from them.
type Factory struct {
	Functions  *functions.Registry
	Matchers   *matcher.Registry
	Selectors  *selector.FactoryRegistry
	Queues     *queue.Registry
	References *References
	Clock      clockwork.Clock
	Defaults   Defaults
	Namespaces map[string]string
	// Variables are bound into every new context before case variables.
	Variables map[string]interface{}

	engine *template.Engine
}

// Option configures a Factory.
type Option func(*Factory)

// WithClock sets the clock shared by contexts and queues.
func WithClock(c clockwork.Clock) Option {
	return func(f *Factory) { f.Clock = c }
}

// WithDefaults sets the timing defaults.
func WithDefaults(d Defaults) Option {
	return func(f *Factory) { f.Defaults = d }
}

// WithVariables sets global variables.
func WithVariables(vars map[string]interface{}) Option {
	return func(f *Factory) { f.Variables = vars }
}

// WithNamespaces sets the namespace context.
func WithNamespaces(ns map[string]string) Option {
	return func(f *Factory) { f.Namespaces = ns }
}

// NewFactory creates a factory with the default registries.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		Functions:  functions.NewDefaultRegistry(),
		Matchers:   matcher.NewDefaultRegistry(),
		Selectors:  selector.NewDefaultFactoryRegistry(),
		References: NewReferences(),
		Clock:      clockwork.NewRealClock(),
		Defaults:   DefaultDefaults(),
		Namespaces: map[string]string{},
		Variables:  map[string]interface{}{},
		engine:     template.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.Queues == nil {
		f.Queues = queue.NewRegistry(
			queue.WithClock(f.Clock),
			queue.WithPollingInterval(f.Defaults.PollingInterval),
		)
	}
	return f
}

// NewContext creates a fresh context sharing the factory registries. Each
// context gets its own variables, message store and timers.
func (f *Factory) NewContext() *Context {
	namespaces := make(map[string]string, len(f.Namespaces))
	for k, v := range f.Namespaces {
		namespaces[k] = v
	}

	return &Context{
		variables:  template.MergeVariables(f.Variables),
		functions:  f.Functions,
		matchers:   f.Matchers,
		selectors:  f.Selectors,
		queues:     f.Queues,
		references: f.References,
		store:      store.New(),
		timers:     newTimers(),
		engine:     f.engine,
		clock:      f.Clock,
		defaults:   f.Defaults,
		namespaces: namespaces,
	}
}
