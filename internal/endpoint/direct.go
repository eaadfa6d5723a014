package endpoint

import (
	"context"
	"time"

	"rehearse/internal/message"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// DirectConfig configures a direct endpoint.
type DirectConfig struct {
	// Queue is the logical queue name messages are sent to and read from.
	Queue string
	// Timeout is the default receive timeout.
	Timeout time.Duration
}

// DirectEndpoint sends to and receives from a named in-process queue.
type DirectEndpoint struct {
	name   string
	config DirectConfig
}

// NewDirect creates an asynchronous direct endpoint.
func NewDirect(name string, config DirectConfig) *DirectEndpoint {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &DirectEndpoint{name: name, config: config}
}

const defaultTimeout = 5 * time.Second

// Name implements Endpoint.
func (e *DirectEndpoint) Name() string { return e.name }

// Timeout implements Endpoint.
func (e *DirectEndpoint) Timeout() time.Duration { return e.config.Timeout }

// CreateProducer implements Endpoint.
func (e *DirectEndpoint) CreateProducer() Producer {
	return &directProducer{endpoint: e.name, queue: e.config.Queue}
}

// CreateConsumer implements Endpoint.
func (e *DirectEndpoint) CreateConsumer() Consumer {
	return &directConsumer{endpoint: e.name, queue: e.config.Queue}
}

type directProducer struct {
	endpoint string
	queue    string
}

func (p *directProducer) Send(ctx context.Context, msg *message.Message, tc *testcontext.Context) error {
	q, err := resolveQueue(tc, p.queue)
	if err != nil {
		return err
	}
	logging.Debug("DirectEndpoint", "Sending message %s to queue %s", msg.ID(), q.Name())
	q.Send(msg)
	return nil
}

type directConsumer struct {
	endpoint string
	queue    string
}

func (c *directConsumer) Receive(ctx context.Context, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	return c.ReceiveSelected(ctx, "", tc, timeout)
}

func (c *directConsumer) ReceiveSelected(ctx context.Context, sel string, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	return receiveFromQueue(ctx, tc, c.endpoint, c.queue, sel, timeout)
}
