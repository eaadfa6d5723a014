package action

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

func TestWaitForMessage(t *testing.T) {
	tc := newContext(t)
	go func() {
		time.Sleep(30 * time.Millisecond)
		tc.MessageStore().StoreMessage("receive(orders)", message.New("late"))
	}()

	err := (&Wait{Condition: &MessageCondition{MessageName: "receive(orders)"}, Interval: 5 * time.Millisecond}).Execute(context.Background(), tc)
	assert.NoError(t, err)
}

func TestWaitForFile(t *testing.T) {
	tc := newContext(t)
	path := filepath.Join(t.TempDir(), "ready")
	tc.SetVariable("marker", path)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte("ok"), 0o600)
	}()

	err := (&Wait{Condition: &FileCondition{Path: "${marker}"}, Interval: 5 * time.Millisecond}).Execute(context.Background(), tc)
	assert.NoError(t, err)

	// a directory is not a file
	err = (&Wait{Condition: &FileCondition{Path: filepath.Dir(path)}, Timeout: 30 * time.Millisecond}).Execute(context.Background(), tc)
	assert.True(t, failure.Is(err, failure.KindTimeout))
}

func TestWaitForHTTP(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tc := newContext(t)
	err := (&Wait{Condition: &HTTPCondition{URL: server.URL}, Interval: 5 * time.Millisecond}).Execute(context.Background(), tc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(hits.Load()), 3)
}

func TestWaitForHTTPTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	err := (&Wait{
		Condition: &HTTPCondition{URL: server.URL, Method: http.MethodGet},
		Timeout:   50 * time.Millisecond,
		Interval:  10 * time.Millisecond,
	}).Execute(context.Background(), newContext(t))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTimeout))
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "within 50ms")
}

// slowProbe records the number of concurrently running probes.
type slowProbe struct {
	running atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (p *slowProbe) Name() string { return "slow" }

func (p *slowProbe) Execute(ctx context.Context, tc *testcontext.Context) error {
	n := p.running.Add(1)
	defer p.running.Add(-1)
	if n > p.maxSeen.Load() {
		p.maxSeen.Store(n)
	}
	time.Sleep(25 * time.Millisecond)
	if p.calls.Add(1) < 3 {
		return failure.New("not yet")
	}
	return nil
}

func TestWaitForActionDoesNotOverlapProbes(t *testing.T) {
	probe := &slowProbe{}
	err := (&Wait{
		Condition: &ActionCondition{Action: probe},
		Interval:  5 * time.Millisecond,
	}).Execute(context.Background(), newContext(t))

	require.NoError(t, err)
	assert.Equal(t, int32(3), probe.calls.Load())
	assert.Equal(t, int32(1), probe.maxSeen.Load())
}

func TestWaitForActionTimeout(t *testing.T) {
	err := (&Wait{
		Condition: &ActionCondition{Action: failing("probe", "still down")},
		Timeout:   40 * time.Millisecond,
		Interval:  10 * time.Millisecond,
	}).Execute(context.Background(), newContext(t))

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTimeout))
	assert.Contains(t, err.Error(), "still down")
}

func TestWaitWithoutCondition(t *testing.T) {
	err := (&Wait{}).Execute(context.Background(), newContext(t))
	assert.True(t, failure.Is(err, failure.KindConfiguration))
}
