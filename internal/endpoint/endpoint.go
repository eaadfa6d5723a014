// Package endpoint is the transport boundary used by send and receive
// actions. An endpoint hands out a producer and a consumer; actions never
// see how messages travel.
//
// The direct endpoint moves messages through the in-process queue registry
// of the test context. In sync mode the producer blocks for a reply that the
// consumer side routes back through correlation.
package endpoint

import (
	"context"
	"time"

	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

// Producer sends messages.
type Producer interface {
	Send(ctx context.Context, msg *message.Message, tc *testcontext.Context) error
}

// Consumer receives messages. A nil message is never returned without an
// error.
type Consumer interface {
	Receive(ctx context.Context, tc *testcontext.Context, timeout time.Duration) (*message.Message, error)
}

// SelectiveConsumer can receive the first message matching a selector
// expression.
type SelectiveConsumer interface {
	Consumer
	ReceiveSelected(ctx context.Context, selector string, tc *testcontext.Context, timeout time.Duration) (*message.Message, error)
}

// Endpoint is a named messaging destination.
type Endpoint interface {
	Name() string
	// Timeout is the receive timeout used when an action sets none.
	Timeout() time.Duration
	CreateProducer() Producer
	CreateConsumer() Consumer
}

// Resolve looks up the endpoint bound under name in the test context.
func Resolve(tc *testcontext.Context, name string) (Endpoint, error) {
	return testcontext.Resolve[Endpoint](tc.References(), name)
}
