package action

import (
	"context"
	"strings"
	"time"

	"rehearse/internal/endpoint"
	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/selector"
	"rehearse/internal/testcontext"
	"rehearse/internal/validation"
	"rehearse/pkg/logging"
)

// MessageTemplate describes a message whose payload and headers may hold
// dynamic content.
type MessageTemplate struct {
	Payload interface{}
	Headers map[string]interface{}
}

// Build resolves dynamic content and creates a new message.
func (t MessageTemplate) Build(tc *testcontext.Context) (*message.Message, error) {
	payload, err := tc.ReplaceDynamicContentIn(t.Payload)
	if err != nil {
		return nil, failure.Configuration("message payload: %v", err)
	}
	msg := message.New(payload)
	for name, value := range t.Headers {
		resolved, err := tc.ReplaceDynamicContentIn(value)
		if err != nil {
			return nil, failure.Configuration("message header '%s': %v", name, err)
		}
		msg.SetHeader(name, resolved)
	}
	return msg, nil
}

// Send builds a message and hands it to an endpoint producer. The message is
// stored in the message store under MessageName, or "send(<endpoint>)".
type Send struct {
	Meta
	Endpoint    string
	Message     MessageTemplate
	MessageName string
	// Fork sends on a detached goroutine; failures are recorded as async
	// failures of the test context.
	Fork bool
}

func (a *Send) Name() string { return a.nameOr("send") }

func (a *Send) Execute(ctx context.Context, tc *testcontext.Context) error {
	ep, err := resolveEndpoint(tc, a.Endpoint)
	if err != nil {
		return failure.Wrap(a.Name(), err)
	}

	msg, err := a.Message.Build(tc)
	if err != nil {
		return failure.Wrap(a.Name(), err)
	}

	name := a.MessageName
	if name == "" {
		name = tc.MessageStore().ConstructMessageName("send", ep.Name())
	}
	tc.MessageStore().StoreMessage(name, msg)

	producer := ep.CreateProducer()
	if !a.Fork {
		logging.Debug("Send", "Sending message %s to endpoint %s", msg.ID(), ep.Name())
		return failure.Wrap(a.Name(), producer.Send(ctx, msg, tc))
	}

	logging.Debug("Send", "Forking send of message %s to endpoint %s", msg.ID(), ep.Name())
	done := tc.StartAsync()
	go func() {
		defer done()
		if err := producer.Send(context.WithoutCancel(ctx), msg, tc); err != nil {
			logging.Warn("Send", "Forked send to %s failed: %v", ep.Name(), err)
			tc.RecordAsyncFailure(a.Name(), failure.Wrap(a.Name(), err))
		}
	}()
	return nil
}

// Receive takes a message from an endpoint consumer, extracts variables and
// validates it against a control message.
type Receive struct {
	Meta
	Endpoint string
	// Selector is a selector expression such as "operation = 'create'".
	Selector string
	// SelectorMap is an alternative to Selector; clauses are AND-ed.
	SelectorMap map[string]string
	// Timeout falls back to the endpoint timeout.
	Timeout     time.Duration
	Control     *MessageTemplate
	Validation  []validation.Context
	Extract     validation.Extractor
	MessageName string
}

func (a *Receive) Name() string { return a.nameOr("receive") }

func (a *Receive) Execute(ctx context.Context, tc *testcontext.Context) error {
	ep, err := resolveEndpoint(tc, a.Endpoint)
	if err != nil {
		return failure.Wrap(a.Name(), err)
	}

	sel, err := a.selectorExpression(tc)
	if err != nil {
		return failure.Wrap(a.Name(), err)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = ep.Timeout()
	}

	consumer := ep.CreateConsumer()
	var received *message.Message
	if sel != "" {
		selective, ok := consumer.(endpoint.SelectiveConsumer)
		if !ok {
			return failure.Wrap(a.Name(), failure.Configuration("endpoint '%s' does not support message selectors", ep.Name()))
		}
		received, err = selective.ReceiveSelected(ctx, sel, tc, timeout)
	} else {
		received, err = consumer.Receive(ctx, tc, timeout)
	}
	if err != nil {
		return failure.Wrap(a.Name(), err)
	}

	name := a.MessageName
	if name == "" {
		name = tc.MessageStore().ConstructMessageName("receive", ep.Name())
	}
	tc.MessageStore().StoreMessage(name, received)
	logging.Debug("Receive", "Received message %s on endpoint %s", received.ID(), ep.Name())

	if !a.Extract.Empty() {
		if err := a.Extract.Extract(received, tc); err != nil {
			return failure.Wrap(a.Name(), err)
		}
	}

	var control *message.Message
	if a.Control != nil {
		if control, err = a.Control.Build(tc); err != nil {
			return failure.Wrap(a.Name(), err)
		}
	}
	if control == nil && len(a.Validation) == 0 {
		return nil
	}

	for _, v := range validation.Validators(tc) {
		if err := v.Validate(received, control, tc, a.Validation); err != nil {
			return failure.Wrap(a.Name(), err)
		}
	}
	return nil
}

func (a *Receive) selectorExpression(tc *testcontext.Context) (string, error) {
	if len(a.SelectorMap) == 0 {
		sel, err := tc.ReplaceDynamicContent(a.Selector)
		if err != nil {
			return "", failure.Configuration("message selector: %v", err)
		}
		return strings.TrimSpace(sel), nil
	}

	clauses := make(map[string]string, len(a.SelectorMap))
	for key, value := range a.SelectorMap {
		resolved, err := tc.ReplaceDynamicContent(value)
		if err != nil {
			return "", failure.Configuration("message selector '%s': %v", key, err)
		}
		if strings.HasPrefix(key, selector.PrefixRootQName) {
			resolved = tc.ExpandQName(resolved)
		}
		clauses[key] = resolved
	}
	return selector.Expression(clauses), nil
}

func resolveEndpoint(tc *testcontext.Context, name string) (endpoint.Endpoint, error) {
	resolved, err := tc.ReplaceDynamicContent(name)
	if err != nil {
		return nil, failure.Configuration("endpoint name: %v", err)
	}
	ep, err := endpoint.Resolve(tc, resolved)
	if err != nil {
		return nil, failure.Configuration("unknown endpoint '%s': %v", resolved, err)
	}
	return ep, nil
}
