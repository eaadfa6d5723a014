package endpoint

import (
	"context"
	"sync"
	"time"

	"rehearse/internal/correlation"
	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

// SyncDirectEndpoint is a request/reply direct endpoint. Its role is decided
// by first use: an endpoint that first creates a producer acts as client
// (send a request, then receive the reply), one that first creates a
// consumer acts as server (receive a request, then send the reply).
type SyncDirectEndpoint struct {
	name   string
	config DirectConfig
	opts   []correlation.Option

	mu       sync.Mutex
	producer *syncProducer
	consumer *syncConsumer
}

// NewSyncDirect creates a synchronous direct endpoint. opts configure the
// correlation managers of both roles.
func NewSyncDirect(name string, config DirectConfig, opts ...correlation.Option) *SyncDirectEndpoint {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &SyncDirectEndpoint{name: name, config: config, opts: opts}
}

// Name implements Endpoint.
func (e *SyncDirectEndpoint) Name() string { return e.name }

// Timeout implements Endpoint.
func (e *SyncDirectEndpoint) Timeout() time.Duration { return e.config.Timeout }

// CreateProducer implements Endpoint. On a server endpoint the consumer
// doubles as the reply producer.
func (e *SyncDirectEndpoint) CreateProducer() Producer {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.consumer != nil {
		return e.consumer
	}
	if e.producer == nil {
		e.producer = &syncProducer{
			endpoint:    e.name,
			config:      e.config,
			correlation: correlation.NewManager[*message.Message](e.opts...),
		}
	}
	return e.producer
}

// CreateConsumer implements Endpoint. On a client endpoint the producer
// doubles as the reply consumer.
func (e *SyncDirectEndpoint) CreateConsumer() Consumer {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.producer != nil {
		return e.producer
	}
	if e.consumer == nil {
		e.consumer = &syncConsumer{
			endpoint:    e.name,
			config:      e.config,
			correlation: correlation.NewManager[string](e.opts...),
		}
	}
	return e.consumer
}

// syncProducer sends requests and collects their replies.
type syncProducer struct {
	endpoint    string
	config      DirectConfig
	correlation *correlation.Manager[*message.Message]
}

func (p *syncProducer) keyName() string {
	return p.correlation.Correlator().CorrelationKeyName(p.endpoint)
}

// Send delivers msg with a temporary reply queue and blocks until the reply
// arrives or the endpoint timeout elapses.
func (p *syncProducer) Send(ctx context.Context, msg *message.Message, tc *testcontext.Context) error {
	q, err := resolveQueue(tc, p.config.Queue)
	if err != nil {
		return err
	}

	replyQueue := tc.Queues().Temporary(q.Name())
	defer tc.Queues().Remove(replyQueue.Name())

	msg.SetHeader(message.HeaderReplyQueue, replyQueue.Name())
	key := p.correlation.Correlator().CorrelationKey(msg)
	p.correlation.SaveCorrelationKey(p.keyName(), key, tc)

	logging.Debug("DirectEndpoint", "Sending synchronous message %s to queue %s", msg.ID(), q.Name())
	q.Send(msg)

	reply := replyQueue.Receive(ctx, p.config.Timeout)
	if reply == nil {
		return failure.Timeout("failed to receive synchronous reply message on endpoint '%s' within %s", p.endpoint, p.config.Timeout)
	}

	logging.Debug("DirectEndpoint", "Received synchronous reply %s on %s", reply.ID(), replyQueue.Name())
	p.correlation.Store(key, reply)
	return nil
}

func (p *syncProducer) Receive(ctx context.Context, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	key, err := p.correlation.CorrelationKey(p.keyName(), tc)
	if err != nil {
		return nil, err
	}
	return p.ReceiveSelected(ctx, key, tc, timeout)
}

// ReceiveSelected returns the reply stored under the correlation key sel.
func (p *syncProducer) ReceiveSelected(ctx context.Context, sel string, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	reply, ok := p.correlation.Find(ctx, sel, timeout)
	if !ok {
		return nil, failure.Timeout("action timeout after %s: failed to receive synchronous reply message on endpoint '%s'", timeout, p.endpoint)
	}
	return reply, nil
}

// syncConsumer receives requests and routes replies back to their sender.
type syncConsumer struct {
	endpoint    string
	config      DirectConfig
	correlation *correlation.Manager[string]
}

func (c *syncConsumer) keyName() string {
	return c.correlation.Correlator().CorrelationKeyName(c.endpoint)
}

func (c *syncConsumer) Receive(ctx context.Context, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	return c.ReceiveSelected(ctx, "", tc, timeout)
}

func (c *syncConsumer) ReceiveSelected(ctx context.Context, sel string, tc *testcontext.Context, timeout time.Duration) (*message.Message, error) {
	msg, err := receiveFromQueue(ctx, tc, c.endpoint, c.config.Queue, sel, timeout)
	if err != nil {
		return nil, err
	}
	c.saveReplyDestination(msg, tc)
	return msg, nil
}

func (c *syncConsumer) saveReplyDestination(msg *message.Message, tc *testcontext.Context) {
	destination, ok := msg.HeaderString(message.HeaderReplyQueue)
	if !ok || destination == "" {
		logging.Warn("DirectEndpoint", "Message %s on endpoint %s carries no reply queue", msg.ID(), c.endpoint)
		return
	}
	key := c.correlation.Correlator().CorrelationKey(msg)
	c.correlation.SaveCorrelationKey(c.keyName(), key, tc)
	c.correlation.Store(key, destination)
}

// Send routes reply to the reply queue of the last received request.
func (c *syncConsumer) Send(ctx context.Context, reply *message.Message, tc *testcontext.Context) error {
	key, err := c.correlation.CorrelationKey(c.keyName(), tc)
	if err != nil {
		return err
	}

	destination, ok := c.correlation.Find(ctx, key, c.config.Timeout)
	if !ok {
		return failure.Configuration("failed to find reply destination for message correlation key: %s", key)
	}

	replyQueue, ok := tc.Queues().Lookup(destination)
	if !ok {
		return failure.Timeout("reply queue '%s' for message correlation key %s is gone: the requester stopped waiting", destination, key)
	}

	logging.Debug("DirectEndpoint", "Sending synchronous reply %s to %s", reply.ID(), destination)
	replyQueue.Send(reply)
	return nil
}
