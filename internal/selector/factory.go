package selector

import (
	"sort"
	"strings"
	"sync"
)

// Key prefixes understood by the built-in selector factories.
const (
	PrefixHeader    = "header:"
	PrefixJSONPath  = "jsonpath:"
	PrefixRootQName = "root-qname:"
	PrefixPayload   = "payload:"
)

// Factory builds a selector for a single `key = 'value'` clause whose key
// starts with the factory's prefix. The key is passed with the prefix
// stripped.
type Factory func(key, value string, matchers ValueMatcher) (Selector, error)

// FactoryRegistry resolves selector factories by key prefix.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry creates an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

// NewDefaultFactoryRegistry creates a registry with the built-in factories.
func NewDefaultFactoryRegistry() *FactoryRegistry {
	r := NewFactoryRegistry()
	r.Register(PrefixHeader, func(key, value string, m ValueMatcher) (Selector, error) {
		return &HeaderSelector{Key: key, Value: value, Matchers: m}, nil
	})
	r.Register(PrefixJSONPath, func(key, value string, m ValueMatcher) (Selector, error) {
		return &JSONPathSelector{Path: key, Value: value, Matchers: m}, nil
	})
	r.Register(PrefixRootQName, func(_, value string, _ ValueMatcher) (Selector, error) {
		return &RootQNameSelector{Value: value}, nil
	})
	r.Register(PrefixPayload, func(_, value string, m ValueMatcher) (Selector, error) {
		return &PayloadSelector{Value: value, Matchers: m}, nil
	})
	return r
}

// Register adds a factory for keys starting with prefix.
func (r *FactoryRegistry) Register(prefix string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[prefix] = f
}

// Resolve finds the factory claiming key. The longest matching prefix wins.
func (r *FactoryRegistry) Resolve(key string) (string, Factory, bool) {
	if r == nil {
		return "", nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefixes := make([]string, 0, len(r.factories))
	for p := range r.factories {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return p, r.factories[p], true
		}
	}
	return "", nil, false
}

// Build creates the selector for one clause. Keys no factory claims fall
// back to plain header matching on the full key.
func (r *FactoryRegistry) Build(key, value string, matchers ValueMatcher) (Selector, error) {
	if prefix, f, ok := r.Resolve(key); ok {
		return f(strings.TrimPrefix(key, prefix), value, matchers)
	}
	return &HeaderSelector{Key: key, Value: value, Matchers: matchers}, nil
}
