package testcontext

import (
	"fmt"
	"sort"
	"sync"
)

// References is a named component registry shared by the contexts of one
// process. Endpoints and message validators are bound here by name so that
// packages which depend on the test context can still be looked up from it.
type References struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewReferences creates an empty registry.
func NewReferences() *References {
	return &References{values: make(map[string]interface{})}
}

// Bind registers value under name, replacing any previous binding.
func (r *References) Bind(name string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
}

// Lookup returns the value bound to name.
func (r *References) Lookup(name string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Names returns all bound names in sorted order.
func (r *References) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the component bound to name as a T.
func Resolve[T any](r *References, name string) (T, error) {
	var zero T
	v, ok := r.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("no component bound to name '%s'", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("component '%s' has unexpected type %T", name, v)
	}
	return t, nil
}

// ResolveAll returns every bound component that is a T, ordered by name.
func ResolveAll[T any](r *References) []T {
	var out []T
	for _, name := range r.Names() {
		v, _ := r.Lookup(name)
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
