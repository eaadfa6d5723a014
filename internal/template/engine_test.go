package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceString(t *testing.T) {
	e := New()
	vars := map[string]interface{}{
		"name":  "orders",
		"count": 3,
		"ratio": 0.5,
		"ok":    true,
		"obj":   map[string]interface{}{"a": 1},
	}

	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"${name}", "orders"},
		{"queue ${name} has ${count} items", "queue orders has 3 items"},
		{"${ name }", "orders"},
		{"${ratio}/${ok}", "0.5/true"},
		{"${obj}", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := e.ReplaceString(tt.in, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReplaceStringMissing(t *testing.T) {
	_, err := New().ReplaceString("${a} and ${b}", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown variable: a, b")
}

func TestReplaceNested(t *testing.T) {
	e := New()
	vars := map[string]interface{}{"id": "42"}

	got, err := e.Replace(map[string]interface{}{
		"order": map[string]interface{}{"id": "${id}"},
		"items": []interface{}{"${id}", 7},
	}, vars)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	assert.Equal(t, "42", m["order"].(map[string]interface{})["id"])
	assert.Equal(t, []interface{}{"42", 7}, m["items"])

	headers, err := e.Replace(map[string]string{"x": "${id}"}, vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"x": "42"}, headers)

	_, err = e.Replace([]interface{}{"${missing}"}, vars)
	assert.ErrorContains(t, err, "error at index 0")
}

func TestExtractVariables(t *testing.T) {
	names := New().ExtractVariables(map[string]interface{}{
		"a": "${x} ${y}",
		"b": []interface{}{"${x}", "${z}"},
	})
	assert.Equal(t, []string{"x", "y", "z"}, names)
}

func TestMergeVariables(t *testing.T) {
	merged := MergeVariables(
		map[string]interface{}{"a": 1, "b": 1},
		map[string]interface{}{"b": 2},
	)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, merged)
}
