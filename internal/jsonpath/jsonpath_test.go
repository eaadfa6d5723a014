package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const order = `{"order": {"id": 7, "items": [{"sku": "A-1"}, {"sku": "B-2"}], "paid": true}}`

func TestGet(t *testing.T) {
	doc, err := Decode(order)
	require.NoError(t, err)

	tests := []struct {
		path     string
		expected interface{}
	}{
		{"order.id", float64(7)},
		{"$.order.paid", true},
		{"order.items[1].sku", "B-2"},
		{"order.items[0]", map[string]interface{}{"sku": "A-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, err := Get(doc, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestGetErrors(t *testing.T) {
	doc, err := Decode(order)
	require.NoError(t, err)

	for _, path := range []string{"order.missing", "order.id.deeper", "order.items[5]", "order.items[x]", "order.items[0"} {
		_, err := Get(doc, path)
		assert.Error(t, err, path)
	}
}

func TestDecode(t *testing.T) {
	_, err := Decode("not json")
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)

	v, err := Decode(struct {
		Name string `json:"name"`
	}{"x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"name": "x"}, v)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(float64(3), "3"))
	assert.True(t, Equal(float64(3), 3))
	assert.True(t, Equal(true, "true"))
	assert.True(t, Equal([]interface{}{"a", float64(1)}, []interface{}{"a", 1}))
	assert.True(t, Equal(map[string]interface{}{"a": "b"}, map[string]interface{}{"a": "b"}))
	assert.False(t, Equal(map[string]interface{}{"a": "b"}, map[string]interface{}{"a": "c"}))
	assert.False(t, Equal([]interface{}{"a"}, "a"))
	assert.False(t, Equal(nil, "x"))
}

func TestIsJSON(t *testing.T) {
	assert.True(t, IsJSON(` {"a":1} `))
	assert.True(t, IsJSON(`[1,2]`))
	assert.False(t, IsJSON(`FooMessage`))
}
