package correlation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/failure"
	"rehearse/internal/message"
)

type vars map[string]interface{}

func (v vars) SetVariable(name string, value interface{}) { v[name] = value }
func (v vars) Variable(name string) (interface{}, bool) {
	val, ok := v[name]
	return val, ok
}

func TestDefaultCorrelator(t *testing.T) {
	msg := message.New("hello")
	c := DefaultCorrelator{}

	assert.Equal(t, "rehearse_message_id = '"+msg.ID()+"'", c.CorrelationKey(msg))
	assert.Equal(t, "rehearse_message_correlator_orders", c.CorrelationKeyName("orders"))
}

func TestRoundTrip(t *testing.T) {
	m := NewManager[string](WithPollingInterval(10 * time.Millisecond))
	v := vars{}

	m.SaveCorrelationKey("k", "id-1", v)
	assert.True(t, m.Pending("id-1"))

	key, err := m.CorrelationKey("k", v)
	require.NoError(t, err)
	assert.Equal(t, "id-1", key)

	m.Store(key, "reply-queue")
	assert.False(t, m.Pending(key))
	assert.True(t, m.Bound(key))

	got, ok := m.Find(context.Background(), key, time.Second)
	require.True(t, ok)
	assert.Equal(t, "reply-queue", got)

	// Find consumed the binding
	assert.False(t, m.Bound(key))
}

func TestFindWaitsForLateBinding(t *testing.T) {
	m := NewManager[int](WithPollingInterval(5 * time.Millisecond))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(30 * time.Millisecond)
		m.Store("late", 7)
	}()

	got, ok := m.Find(context.Background(), "late", time.Second)
	wg.Wait()
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestFindTimeoutReturnsAbsent(t *testing.T) {
	m := NewManager[*message.Message](WithPollingInterval(10 * time.Millisecond))

	start := time.Now()
	got, ok := m.Find(context.Background(), "never", 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestMissingCorrelationKey(t *testing.T) {
	m := NewManager[string]()
	_, err := m.CorrelationKey("missing", vars{})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindConfiguration))
}

func TestRemove(t *testing.T) {
	m := NewManager[string]()
	m.SaveCorrelationKey("k", "a", vars{})
	m.Store("b", "x")

	m.Remove("a")
	m.Remove("b")
	assert.False(t, m.Pending("a"))

	_, ok := m.Find(context.Background(), "b", 0)
	assert.False(t, ok)
}
