package endpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"rehearse/internal/config"
	"rehearse/internal/correlation"
	"rehearse/internal/testcontext"
)

// Registry holds the endpoints declared for a run.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]Endpoint)}
}

// Add registers e under its name. Names must be unique.
func (r *Registry) Add(e Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.endpoints[e.Name()]; exists {
		return fmt.Errorf("endpoint '%s' already registered", e.Name())
	}
	r.endpoints[e.Name()] = e
	return nil
}

// Get returns the endpoint registered under name.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[name]
	return e, ok
}

// Names returns the registered endpoint names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BindTo binds every endpoint into refs by name so actions can resolve them
// from the test context.
func (r *Registry) BindTo(refs *testcontext.References) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, e := range r.endpoints {
		refs.Bind(name, e)
	}
}

// FromConfig builds an endpoint from its configuration.
func FromConfig(c config.EndpointConfig, clock clockwork.Clock) (Endpoint, error) {
	switch c.Type {
	case config.EndpointTypeDirect, "":
		dc := DirectConfig{Queue: c.Queue, Timeout: c.Timeout}
		if c.Sync {
			return NewSyncDirect(c.Name, dc,
				correlation.WithClock(clock),
				correlation.WithPollingInterval(c.PollingInterval),
			), nil
		}
		return NewDirect(c.Name, dc), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint type '%s' for endpoint '%s'", c.Type, c.Name)
	}
}

// NewRegistryFromConfig builds a registry holding every configured endpoint.
func NewRegistryFromConfig(cfgs []config.EndpointConfig, clock clockwork.Clock) (*Registry, error) {
	r := NewRegistry()
	for _, c := range cfgs {
		e, err := FromConfig(c, clock)
		if err != nil {
			return nil, err
		}
		if err := r.Add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}
