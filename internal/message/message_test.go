package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsIdentity(t *testing.T) {
	a := New("hello")
	b := New("hello")

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.Timestamp().IsZero())
}

func TestCopyKeepsIdentity(t *testing.T) {
	m := New("payload").SetHeader("foo", "bar")
	c := m.Copy()

	assert.Equal(t, m.ID(), c.ID())
	assert.Equal(t, m.Timestamp(), c.Timestamp())
	assert.Equal(t, "bar", c.Headers["foo"])

	c.SetHeader("foo", "changed")
	assert.Equal(t, "bar", m.Headers["foo"], "copy must not share the header map")
}

func TestCopyWithNewIdentity(t *testing.T) {
	m := New("payload").SetHeader("foo", "bar")
	c := m.CopyWithNewIdentity()

	assert.NotEqual(t, m.ID(), c.ID())
	assert.Equal(t, "payload", c.Payload)
	assert.Equal(t, "bar", c.Headers["foo"])
}

func TestIdentityHeaders(t *testing.T) {
	m := New("x")

	id, ok := m.HeaderString(HeaderID)
	require.True(t, ok)
	assert.Equal(t, m.ID(), id)

	_, ok = m.Header(HeaderTimestamp)
	assert.True(t, ok)

	_, ok = m.Header("missing")
	assert.False(t, ok)

	m.SetHeader("b", 1).SetHeader("a", 2)
	assert.Equal(t, []string{HeaderID, HeaderTimestamp, "a", "b"}, m.HeaderNames())
}

func TestPayloadString(t *testing.T) {
	tests := []struct {
		name     string
		payload  interface{}
		expected string
	}{
		{"string", "FooMessage", "FooMessage"},
		{"bytes", []byte("raw"), "raw"},
		{"map", map[string]interface{}{"a": 1}, `{"a":1}`},
		{"nil", nil, ""},
		{"number", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.payload).PayloadString())
		})
	}
}
