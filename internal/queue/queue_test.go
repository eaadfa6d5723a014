package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"rehearse/internal/message"
	"rehearse/internal/selector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(k, v string) selector.Selector {
	return &selector.HeaderSelector{Key: k, Value: v}
}

func TestReceiveFIFO(t *testing.T) {
	q := New("fifo", WithPollingInterval(5*time.Millisecond))
	first := message.New("1")
	second := message.New("2")
	q.Send(first)
	q.Send(second)

	assert.Same(t, first, q.Receive(context.Background(), 0))
	assert.Same(t, second, q.Receive(context.Background(), 0))
	assert.Nil(t, q.Receive(context.Background(), 0))
}

func TestReceiveZeroTimeoutOnEmptyQueue(t *testing.T) {
	q := New("empty", WithPollingInterval(time.Hour))

	start := time.Now()
	assert.Nil(t, q.Receive(context.Background(), 0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestReceiveWaitsForLateMessage(t *testing.T) {
	q := New("late", WithPollingInterval(10*time.Millisecond))
	m := message.New("late")

	go func() {
		time.Sleep(30 * time.Millisecond)
		q.Send(m)
	}()

	assert.Same(t, m, q.Receive(context.Background(), time.Second))
}

func TestReceiveSelectedLeavesNonMatchingInPlace(t *testing.T) {
	q := New("selective", WithPollingInterval(5*time.Millisecond))
	a := message.New("a").SetHeader("type", "a")
	b := message.New("b").SetHeader("type", "b")
	a2 := message.New("a2").SetHeader("type", "a")
	q.Send(a)
	q.Send(b)
	q.Send(a2)

	got := q.ReceiveSelected(context.Background(), header("type", "b"), 0)
	assert.Same(t, b, got)

	remaining := q.Snapshot()
	require.Len(t, remaining, 2)
	assert.Same(t, a, remaining[0])
	assert.Same(t, a2, remaining[1])

	assert.Same(t, a, q.ReceiveSelected(context.Background(), header("type", "a"), 0))
	assert.Same(t, a2, q.ReceiveSelected(context.Background(), header("type", "a"), 0))
	assert.Nil(t, q.ReceiveSelected(context.Background(), header("type", "a"), 0))
}

func TestEndToEndSelectorScenario(t *testing.T) {
	q := New("Q", WithPollingInterval(20*time.Millisecond))
	q.Send(message.New("FooMessage").SetHeader("foo", "bar"))

	sel, err := selector.Parse("foo = 'bar'", selector.NewDefaultFactoryRegistry(), nil)
	require.NoError(t, err)

	got := q.ReceiveSelected(context.Background(), sel, time.Second)
	require.NotNil(t, got)
	assert.Equal(t, "FooMessage", got.Payload)

	start := time.Now()
	assert.Nil(t, q.Receive(context.Background(), 100*time.Millisecond))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond+500*time.Millisecond)
}

func TestConcurrentSendReceive(t *testing.T) {
	q := New("concurrent", WithPollingInterval(time.Millisecond))
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Send(message.New("x"))
		}()
	}

	received := make(chan *message.Message, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m := q.Receive(context.Background(), 2*time.Second); m != nil {
				received <- m
			}
		}()
	}
	wg.Wait()
	close(received)

	seen := map[string]bool{}
	for m := range received {
		assert.False(t, seen[m.ID()], "message delivered twice")
		seen[m.ID()] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, 0, q.Len())
}

func TestPurge(t *testing.T) {
	q := New("purge")
	q.Send(message.New("a").SetHeader("keep", "no"))
	q.Send(message.New("b").SetHeader("keep", "yes"))
	q.Send(message.New("c").SetHeader("keep", "no"))

	assert.Equal(t, 2, q.Purge(header("keep", "no")))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Purge(nil))
	assert.Equal(t, 0, q.Len())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(WithPollingInterval(time.Millisecond))

	q := r.Get("orders")
	assert.Same(t, q, r.Get("orders"))
	assert.Equal(t, time.Millisecond, q.PollingInterval())

	_, ok := r.Lookup("missing")
	assert.False(t, ok)

	tmp1 := r.Temporary("orders")
	tmp2 := r.Temporary("orders")
	assert.NotEqual(t, tmp1.Name(), tmp2.Name())

	r.Remove(tmp1.Name())
	r.Remove(tmp2.Name())
	assert.Equal(t, []string{"orders"}, r.Names())

	custom := New("custom", WithPollingInterval(time.Second))
	r.Add(custom)
	got, ok := r.Lookup("custom")
	require.True(t, ok)
	assert.Same(t, custom, got)
}

func TestReceiveExpression(t *testing.T) {
	q := New("expr", WithPollingInterval(time.Millisecond))
	q.Send(message.New("x").SetHeader("op", "a"))

	_, err := q.ReceiveExpression(context.Background(), "op <> 'a'", selector.NewDefaultFactoryRegistry(), nil, time.Second)
	require.Error(t, err)
	assert.Equal(t, 1, q.Len(), "malformed selector must not consume messages")

	m, err := q.ReceiveExpression(context.Background(), "op = 'a'", selector.NewDefaultFactoryRegistry(), nil, 0)
	require.NoError(t, err)
	require.NotNil(t, m)

	m, err = q.ReceiveExpression(context.Background(), "op = 'a'", selector.NewDefaultFactoryRegistry(), nil, 0)
	require.NoError(t, err)
	assert.Nil(t, m)
}
