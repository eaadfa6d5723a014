// Package correlation pairs requests with their asynchronous replies.
//
// A key moves through three states. It is unbound at first. SaveCorrelationKey
// makes it pending and records it as a test variable so later actions can
// find it. Store binds a value (a reply destination or a reply message) to the
// key. Find consumes the binding and returns the key to unbound.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/poll"
	"rehearse/pkg/logging"
)

// KeyNamePrefix namespaces correlation key variables per consumer.
const KeyNamePrefix = "rehearse_message_correlator_"

// VariableStore is the part of the test context correlation needs.
type VariableStore interface {
	SetVariable(name string, value interface{})
	Variable(name string) (interface{}, bool)
}

// Correlator derives correlation keys from messages.
type Correlator interface {
	// CorrelationKey computes the key for msg.
	CorrelationKey(msg *message.Message) string
	// CorrelationKeyName returns the variable name keys for consumer are
	// saved under.
	CorrelationKeyName(consumer string) string
}

// DefaultCorrelator keys on the message id. The key is itself a selector
// expression, so a consumer can use it to pick the reply from a queue.
type DefaultCorrelator struct{}

// CorrelationKey returns "rehearse_message_id = '<id>'".
func (DefaultCorrelator) CorrelationKey(msg *message.Message) string {
	return fmt.Sprintf("%s = '%s'", message.HeaderID, msg.ID())
}

// CorrelationKeyName returns the per-consumer key variable name.
func (DefaultCorrelator) CorrelationKeyName(consumer string) string {
	return KeyNamePrefix + consumer
}

// Manager binds correlation keys to values of type T.
type Manager[T any] struct {
	correlator      Correlator
	clock           clockwork.Clock
	pollingInterval time.Duration

	mu      sync.Mutex
	values  map[string]T
	pending map[string]struct{}
}

// Option configures a Manager.
type Option func(*settings)

type settings struct {
	correlator      Correlator
	clock           clockwork.Clock
	pollingInterval time.Duration
}

// WithCorrelator replaces the default correlator.
func WithCorrelator(c Correlator) Option {
	return func(s *settings) { s.correlator = c }
}

// WithClock sets the clock used when polling in Find.
func WithClock(c clockwork.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithPollingInterval sets the retry interval of Find.
func WithPollingInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.pollingInterval = d
		}
	}
}

// NewManager creates an empty manager.
func NewManager[T any](opts ...Option) *Manager[T] {
	s := settings{
		correlator:      DefaultCorrelator{},
		clock:           clockwork.NewRealClock(),
		pollingInterval: poll.DefaultInterval,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Manager[T]{
		correlator:      s.correlator,
		clock:           s.clock,
		pollingInterval: s.pollingInterval,
		values:          make(map[string]T),
		pending:         make(map[string]struct{}),
	}
}

// Correlator returns the key derivation strategy.
func (m *Manager[T]) Correlator() Correlator {
	return m.correlator
}

// SaveCorrelationKey records key under keyName in vars and marks it pending.
func (m *Manager[T]) SaveCorrelationKey(keyName, key string, vars VariableStore) {
	logging.Debug("Correlation", "Saving correlation key %s = %s", keyName, key)
	vars.SetVariable(keyName, key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[key] = struct{}{}
}

// CorrelationKey reads the key saved under keyName.
func (m *Manager[T]) CorrelationKey(keyName string, vars VariableStore) (string, error) {
	v, ok := vars.Variable(keyName)
	if !ok {
		return "", failure.Configuration("failed to get correlation key for '%s'", keyName)
	}
	key, ok := v.(string)
	if !ok {
		return "", failure.Configuration("correlation key '%s' is not a string", keyName)
	}
	return key, nil
}

// Store binds value to key. A later Store under the same key replaces it.
func (m *Manager[T]) Store(key string, value T) {
	logging.Debug("Correlation", "Binding value to correlation key %s", key)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	delete(m.pending, key)
}

// Find waits up to timeout for a value bound to key, retrying every polling
// interval. The binding is consumed. It returns false when nothing was bound
// in time.
func (m *Manager[T]) Find(ctx context.Context, key string, timeout time.Duration) (T, bool) {
	var found T
	ok := poll.Until(ctx, m.clock, timeout, m.pollingInterval, func() bool {
		var hit bool
		found, hit = m.take(key)
		return hit
	})
	if !ok {
		logging.Debug("Correlation", "No value bound to correlation key %s within %s", key, timeout)
	}
	return found, ok
}

func (m *Manager[T]) take(key string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if ok {
		delete(m.values, key)
	}
	return v, ok
}

// Remove drops any binding and pending mark for key.
func (m *Manager[T]) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.pending, key)
}

// Pending reports whether key was saved and is still waiting for a value.
func (m *Manager[T]) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[key]
	return ok
}

// Bound reports whether a value is currently bound to key.
func (m *Manager[T]) Bound(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
