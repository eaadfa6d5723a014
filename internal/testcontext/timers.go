package testcontext

import (
	"sort"
	"sync"

	"rehearse/internal/failure"
)

// Stoppable is a forked background task that can be stopped by name.
type Stoppable interface {
	Stop()
}

// Timers tracks the forked timers of one test case.
type Timers struct {
	mu     sync.Mutex
	timers map[string]Stoppable
}

func newTimers() *Timers {
	return &Timers{timers: make(map[string]Stoppable)}
}

// Register adds a timer under id. A previous timer with that id is stopped
// before it is replaced, so no run outlives its registration.
func (t *Timers) Register(id string, s Stoppable) {
	t.mu.Lock()
	previous, ok := t.timers[id]
	t.timers[id] = s
	t.mu.Unlock()

	if ok && previous != s {
		previous.Stop()
	}
}

// Stop stops the timer registered under id.
func (t *Timers) Stop(id string) error {
	t.mu.Lock()
	s, ok := t.timers[id]
	t.mu.Unlock()
	if !ok {
		return failure.Configuration("no timer registered with id '%s'", id)
	}
	s.Stop()
	return nil
}

// StopAll stops every registered timer and returns their ids.
func (t *Timers) StopAll() []string {
	t.mu.Lock()
	timers := make(map[string]Stoppable, len(t.timers))
	for id, s := range t.timers {
		timers[id] = s
	}
	t.mu.Unlock()

	ids := make([]string, 0, len(timers))
	for id, s := range timers {
		s.Stop()
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IDs returns the registered timer ids.
func (t *Timers) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.timers))
	for id := range t.timers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
