// Package store remembers named messages that passed through send and
// receive actions so later actions can refer to them.
package store

import (
	"fmt"
	"sort"
	"sync"

	"rehearse/internal/message"
)

// Store is a name-indexed archive of messages.
type Store interface {
	// GetMessage returns the latest message stored under name.
	GetMessage(name string) (*message.Message, bool)
	// StoreMessage stores msg under name, replacing any earlier message.
	StoreMessage(name string, msg *message.Message)
	// ConstructMessageName derives the default name for an action/endpoint pair.
	ConstructMessageName(action, endpoint string) string
}

// DefaultStore keeps the latest message per name in memory.
type DefaultStore struct {
	mu       sync.RWMutex
	messages map[string]*message.Message
}

// New creates an empty store.
func New() *DefaultStore {
	return &DefaultStore{messages: make(map[string]*message.Message)}
}

// GetMessage implements Store
func (s *DefaultStore) GetMessage(name string) (*message.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[name]
	return m, ok
}

// StoreMessage implements Store
func (s *DefaultStore) StoreMessage(name string, msg *message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[name] = msg
}

// ConstructMessageName implements Store
func (s *DefaultStore) ConstructMessageName(action, endpoint string) string {
	return fmt.Sprintf("%s(%s)", action, endpoint)
}

// Names returns the names of all stored messages in sorted order.
func (s *DefaultStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.messages))
	for n := range s.messages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
