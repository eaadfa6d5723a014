package functions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltins(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		in       string
		expected string
	}{
		{"no calls here", "no calls here"},
		{"rehearse:concat('order-', '42')", "order-42"},
		{"id=rehearse:upperCase('abc')!", "id=ABC!"},
		{"rehearse:lowerCase('ABC')", "abc"},
		{"rehearse:substring('hello', 1, 3)", "el"},
		{"rehearse:substring('hello', '2')", "llo"},
		{"rehearse:stringLength('héllo')", "5"},
		{"rehearse:sum('1', 2, '3.5')", "6.5"},
		{"rehearse:escapeXml('<a & b>')", "&lt;a &amp; b&gt;"},
		{"rehearse:concat('a, b', rehearse:upperCase('c'))", "a, bC"},
		{"rehearse:concat('(', ')')", "()"},
		{"see http://example.com:8080(docs)", "see http://example.com:8080(docs)"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	r := NewDefaultRegistry()

	_, err := r.Resolve("rehearse:nope('x')")
	assert.ErrorContains(t, err, "unknown function 'rehearse:nope'")

	_, err = r.Resolve("rehearse:concat('x'")
	assert.ErrorContains(t, err, "unbalanced")

	_, err = r.Resolve("rehearse:substring('abc', 5)")
	assert.ErrorContains(t, err, "invalid begin index")
}

func TestRandomFunctions(t *testing.T) {
	r := NewDefaultRegistry()

	n, err := r.Resolve("rehearse:randomNumber(6)")
	require.NoError(t, err)
	assert.Len(t, n, 6)
	assert.NotEqual(t, byte('0'), n[0])

	s, err := r.Resolve("rehearse:randomString(8, 'UPPERCASE')")
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z]{8}$`, s)

	id, err := r.Resolve("rehearse:randomUUID()")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestCurrentDate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))
	r := NewRegistry()
	r.Add(BuiltinsWithClock(clock))

	got, err := r.Resolve("rehearse:currentDate('yyyy-MM-dd')")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", got)

	got, err = r.Resolve("rehearse:currentDate('2006/01/02 15:04', '24h')")
	require.NoError(t, err)
	assert.Equal(t, "2024/03/10 14:05", got)

	got, err = r.Resolve("rehearse:currentDate()")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09T14:05:07", got)
}

func TestSprigAdapter(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		in       string
		expected string
	}{
		{"sprig:upper('abc')", "ABC"},
		{"sprig:trim('  x  ')", "x"},
		{"sprig:repeat(3, 'ab')", "ababab"},
		{"sprig:replace('a', 'b', 'banana')", "bbnbnb"},
		{"sprig:add1(41)", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := r.Resolve("sprig:upper('a', 'b')")
	assert.ErrorContains(t, err, "expects 1 arguments")
}
