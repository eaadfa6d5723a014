package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/config"
	"rehearse/internal/correlation"
	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

func newContext() *testcontext.Context {
	return testcontext.NewFactory(testcontext.WithDefaults(testcontext.Defaults{
		ReceiveTimeout:  time.Second,
		PollingInterval: 5 * time.Millisecond,
	})).NewContext()
}

func TestDirectEndpoint(t *testing.T) {
	tc := newContext()
	e := NewDirect("orders", DirectConfig{Queue: "orders.inbound"})
	ctx := context.Background()

	require.NoError(t, e.CreateProducer().Send(ctx, message.New("first").SetHeader("type", "a"), tc))
	require.NoError(t, e.CreateProducer().Send(ctx, message.New("second").SetHeader("type", "b"), tc))

	consumer := e.CreateConsumer().(SelectiveConsumer)
	got, err := consumer.ReceiveSelected(ctx, "type = 'b'", tc, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Payload)

	got, err = consumer.Receive(ctx, tc, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Payload)

	_, err = consumer.Receive(ctx, tc, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTimeout))
	assert.Contains(t, err.Error(), "endpoint 'orders'")

	_, err = consumer.ReceiveSelected(ctx, "type = b", tc, 0)
	assert.True(t, failure.Is(err, failure.KindConfiguration))
}

func TestDirectEndpointQueueNameIsDynamic(t *testing.T) {
	tc := newContext()
	tc.SetVariable("region", "eu")
	e := NewDirect("orders", DirectConfig{Queue: "orders.${region}"})

	require.NoError(t, e.CreateProducer().Send(context.Background(), message.New("x"), tc))
	q, ok := tc.Queues().Lookup("orders.eu")
	require.True(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestSyncEndpointLazyRole(t *testing.T) {
	client := NewSyncDirect("client", DirectConfig{Queue: "q"})
	p := client.CreateProducer()
	assert.Same(t, p, client.CreateConsumer())

	server := NewSyncDirect("server", DirectConfig{Queue: "q"})
	c := server.CreateConsumer()
	assert.Same(t, c, server.CreateProducer())
}

func TestSyncRequestReply(t *testing.T) {
	tc := newContext()
	opts := []correlation.Option{correlation.WithPollingInterval(5 * time.Millisecond)}
	client := NewSyncDirect("client", DirectConfig{Queue: "hello", Timeout: time.Second}, opts...)
	server := NewSyncDirect("server", DirectConfig{Queue: "hello", Timeout: time.Second}, opts...)
	ctx := context.Background()

	serverDone := make(chan error, 1)
	go func() {
		req, err := server.CreateConsumer().Receive(ctx, tc, time.Second)
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- server.CreateProducer().Send(ctx, message.New("re: "+req.PayloadString()), tc)
	}()

	request := message.New("hi")
	require.NoError(t, client.CreateProducer().Send(ctx, request, tc))
	require.NoError(t, <-serverDone)

	reply, err := client.CreateConsumer().Receive(ctx, tc, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "re: hi", reply.Payload)

	keyName := correlation.DefaultCorrelator{}.CorrelationKeyName("client")
	key, ok := tc.VariableString(keyName)
	require.True(t, ok)
	assert.Equal(t, "rehearse_message_id = '"+request.ID()+"'", key)

	// the temporary reply queue is gone
	for _, name := range tc.Queues().Names() {
		assert.NotContains(t, name, ".reply.")
	}
}

func TestSyncReplyTimeout(t *testing.T) {
	tc := newContext()
	client := NewSyncDirect("client", DirectConfig{Queue: "nobody", Timeout: 30 * time.Millisecond})

	err := client.CreateProducer().Send(context.Background(), message.New("hi"), tc)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTimeout))
	assert.Contains(t, err.Error(), "failed to receive synchronous reply message")
}

func TestSyncReplyAfterRequesterGaveUp(t *testing.T) {
	tc := newContext()
	opts := []correlation.Option{correlation.WithPollingInterval(5 * time.Millisecond)}
	client := NewSyncDirect("client", DirectConfig{Queue: "late", Timeout: 30 * time.Millisecond}, opts...)
	server := NewSyncDirect("server", DirectConfig{Queue: "late", Timeout: 100 * time.Millisecond}, opts...)
	ctx := context.Background()

	err := client.CreateProducer().Send(ctx, message.New("hi"), tc)
	require.True(t, failure.Is(err, failure.KindTimeout))

	_, err = server.CreateConsumer().Receive(ctx, tc, 100*time.Millisecond)
	require.NoError(t, err)

	err = server.CreateProducer().Send(ctx, message.New("too late"), tc)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTimeout))
	assert.Contains(t, err.Error(), "the requester stopped waiting")

	for _, name := range tc.Queues().Names() {
		assert.NotContains(t, name, ".reply.")
	}
}

func TestSyncReplyWithoutRequest(t *testing.T) {
	tc := newContext()
	server := NewSyncDirect("server", DirectConfig{Queue: "q", Timeout: 20 * time.Millisecond})
	_ = server.CreateConsumer()

	err := server.CreateProducer().Send(context.Background(), message.New("reply"), tc)
	assert.True(t, failure.Is(err, failure.KindConfiguration))

	// a key with no destination bound reports the key
	tc.SetVariable(correlation.DefaultCorrelator{}.CorrelationKeyName("server"), "rehearse_message_id = 'x'")
	err = server.CreateProducer().Send(context.Background(), message.New("reply"), tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find reply destination for message correlation key: rehearse_message_id = 'x'")
}

func TestRegistryFromConfig(t *testing.T) {
	r, err := NewRegistryFromConfig([]config.EndpointConfig{
		{Name: "a", Type: config.EndpointTypeDirect, Queue: "qa"},
		{Name: "b", Type: config.EndpointTypeDirect, Queue: "qb", Sync: true},
	}, clockwork.NewRealClock())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	b, ok := r.Get("b")
	require.True(t, ok)
	assert.IsType(t, &SyncDirectEndpoint{}, b)

	_, err = NewRegistryFromConfig([]config.EndpointConfig{{Name: "x", Type: "jms"}}, clockwork.NewRealClock())
	assert.ErrorContains(t, err, "unsupported endpoint type")

	_, err = NewRegistryFromConfig([]config.EndpointConfig{{Name: "a", Queue: "1"}, {Name: "a", Queue: "2"}}, clockwork.NewRealClock())
	assert.ErrorContains(t, err, "already registered")

	tc := newContext()
	r.BindTo(tc.References())
	resolved, err := Resolve(tc, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", resolved.Name())
}
