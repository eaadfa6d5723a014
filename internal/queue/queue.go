package queue

import (
	"context"
	"sync"
	"time"

	"rehearse/internal/message"
	"rehearse/internal/poll"
	"rehearse/internal/selector"
	"rehearse/pkg/logging"

	"github.com/jonboulle/clockwork"
)

// DefaultPollingInterval is the retry delay of queues created without an
// explicit polling interval.
const DefaultPollingInterval = 100 * time.Millisecond

// Queue is an in-memory, unbounded mailbox for one logical channel name.
// Send never blocks; receive operations poll until a timeout elapses.
type Queue struct {
	name            string
	pollingInterval time.Duration
	clock           clockwork.Clock

	mu       sync.Mutex
	messages []*message.Message
}

// Option configures a Queue.
type Option func(*Queue)

// WithPollingInterval sets the delay between receive attempts.
func WithPollingInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollingInterval = d
		}
	}
}

// WithClock replaces the clock used for polling.
func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) {
		if c != nil {
			q.clock = c
		}
	}
}

// New creates an empty queue.
func New(name string, opts ...Option) *Queue {
	q := &Queue{
		name:            name,
		pollingInterval: DefaultPollingInterval,
		clock:           clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the logical channel name.
func (q *Queue) Name() string {
	return q.name
}

// PollingInterval returns the delay between receive attempts.
func (q *Queue) PollingInterval() time.Duration {
	return q.pollingInterval
}

// Send appends msg to the tail of the queue.
func (q *Queue) Send(msg *message.Message) {
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	size := len(q.messages)
	q.mu.Unlock()

	logging.Debug("Queue", "Message %s sent to queue '%s' (size %d)", msg.ID(), q.name, size)
}

// Receive returns the head message, waiting up to timeout. It returns nil
// when no message arrived in time. A zero timeout checks exactly once.
func (q *Queue) Receive(ctx context.Context, timeout time.Duration) *message.Message {
	return q.ReceiveSelected(ctx, nil, timeout)
}

// ReceiveSelected returns and removes the first message sel accepts,
// waiting up to timeout. Messages the selector rejects stay in place and
// keep their order. A nil selector accepts every message.
func (q *Queue) ReceiveSelected(ctx context.Context, sel selector.Selector, timeout time.Duration) *message.Message {
	var found *message.Message
	poll.Until(ctx, q.clock, timeout, q.pollingInterval, func() bool {
		found = q.take(sel)
		if found == nil {
			logging.Debug("Queue", "No matching message on queue '%s' yet", q.name)
		}
		return found != nil
	})

	if found != nil {
		logging.Debug("Queue", "Message %s received from queue '%s'", found.ID(), q.name)
	}
	return found
}

// take scans from the head and removes the first accepted message.
func (q *Queue) take(sel selector.Selector) *message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, m := range q.messages {
		if sel != nil && !sel.Accept(m) {
			continue
		}
		copy(q.messages[i:], q.messages[i+1:])
		q.messages[len(q.messages)-1] = nil
		q.messages = q.messages[:len(q.messages)-1]
		return m
	}
	return nil
}

// Purge removes every message sel accepts (all messages for a nil selector)
// and returns how many were removed.
func (q *Queue) Purge(sel selector.Selector) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.messages[:0]
	removed := 0
	for _, m := range q.messages {
		if sel == nil || sel.Accept(m) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(q.messages); i++ {
		q.messages[i] = nil
	}
	q.messages = kept

	if removed > 0 {
		logging.Debug("Queue", "Purged %d message(s) from queue '%s'", removed, q.name)
	}
	return removed
}

// Len returns the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Snapshot returns the pending messages in order without removing them.
func (q *Queue) Snapshot() []*message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*message.Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// ReceiveExpression parses a selector expression and receives the first
// message it accepts. A malformed expression is returned as an error right
// away and never retried; a missing message is (nil, nil).
func (q *Queue) ReceiveExpression(ctx context.Context, expr string, factories *selector.FactoryRegistry, matchers selector.ValueMatcher, timeout time.Duration) (*message.Message, error) {
	sel, err := selector.Parse(expr, factories, matchers)
	if err != nil {
		return nil, err
	}
	return q.ReceiveSelected(ctx, sel, timeout), nil
}
