package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesKind(t *testing.T) {
	base := Timeout("no message on queue %s after %dms", "orders", 100)
	wrapped := Wrap("receive", base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindTimeout))
	assert.Equal(t, "action 'receive' failed: no message on queue orders after 100ms", wrapped.Error())
	assert.Equal(t, "no message on queue orders after 100ms", RootMessage(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestWrapIsIdempotentForSameAction(t *testing.T) {
	err := Wrap("echo", errors.New("boom"))
	assert.Same(t, err, Wrap("echo", err))
	assert.Nil(t, Wrap("echo", nil))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindAction, KindOf(errors.New("x")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("outer: %w", Validation("bad header"))))
}

func TestAggregateError(t *testing.T) {
	a := Wrap("a", errors.New("first"))
	b := Wrap("b", Timeout("second"))
	agg := &AggregateError{Action: "parallel", Failures: []error{a, b}}

	assert.Equal(t, KindAggregate, KindOf(agg))
	assert.Contains(t, agg.Error(), "first")
	assert.Contains(t, agg.Error(), "second")
	assert.Contains(t, agg.Error(), "2 of the concurrent actions failed")

	var fe *Error
	require.True(t, errors.As(agg, &fe))
	assert.Equal(t, "a", fe.Action)
	assert.True(t, errors.Is(agg, b))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Timeout")
	require.NoError(t, err)
	assert.Equal(t, KindTimeout, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, Kind(""), k)

	_, err = ParseKind("explosion")
	assert.Error(t, err)
}
