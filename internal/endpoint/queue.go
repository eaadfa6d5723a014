package endpoint

import (
	"context"
	"time"

	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/queue"
	"rehearse/internal/testcontext"
	"rehearse/pkg/logging"
)

func resolveQueue(tc *testcontext.Context, name string) (*queue.Queue, error) {
	name, err := tc.ReplaceDynamicContent(name)
	if err != nil {
		return nil, failure.Configuration("invalid queue name: %v", err)
	}
	if name == "" {
		return nil, failure.Configuration("no queue configured")
	}
	return tc.Queues().Get(name), nil
}

// receiveFromQueue reads the head (or first selected) message and turns
// absence into a timeout failure.
func receiveFromQueue(ctx context.Context, tc *testcontext.Context, endpoint, queueName, sel string, timeout time.Duration) (*message.Message, error) {
	q, err := resolveQueue(tc, queueName)
	if err != nil {
		return nil, err
	}

	var msg *message.Message
	if sel == "" {
		logging.Debug("DirectEndpoint", "Receiving message from queue %s", q.Name())
		msg = q.Receive(ctx, timeout)
	} else {
		logging.Debug("DirectEndpoint", "Receiving message from queue %s with selector %s", q.Name(), sel)
		msg, err = q.ReceiveExpression(ctx, sel, tc.Selectors(), tc.Matchers(), timeout)
		if err != nil {
			return nil, err
		}
	}

	if msg == nil {
		return nil, failure.Timeout("action timeout after %s while receiving message on endpoint '%s'", timeout, endpoint)
	}
	logging.Debug("DirectEndpoint", "Received message %s from queue %s", msg.ID(), q.Name())
	return msg, nil
}
