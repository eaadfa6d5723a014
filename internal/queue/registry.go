package queue

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry holds one queue per logical name. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
	opts   []Option
	seq    atomic.Uint64
}

// NewRegistry creates a registry whose lazily created queues use opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		queues: make(map[string]*Queue),
		opts:   opts,
	}
}

// Get returns the queue for name, creating it on first use.
func (r *Registry) Get(name string) *Queue {
	r.mu.RLock()
	q, ok := r.queues[name]
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[name]; ok {
		return q
	}
	q = New(name, r.opts...)
	r.queues[name] = q
	return q
}

// Add registers a pre-configured queue, replacing any queue of that name.
func (r *Registry) Add(q *Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[q.Name()] = q
}

// Lookup returns the queue for name without creating it.
func (r *Registry) Lookup(name string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// Remove deletes the queue for name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, name)
}

// Temporary creates a uniquely named queue derived from prefix, used for
// synchronous reply channels.
func (r *Registry) Temporary(prefix string) *Queue {
	return r.Get(fmt.Sprintf("%s.reply.%d", prefix, r.seq.Add(1)))
}

// Names returns all queue names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for n := range r.queues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
