package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr     string
		expected bool
	}{
		{"0 lt 1", true},
		{"1 lt 1", false},
		{"1 lt= 1", true},
		{"2 gt 1", true},
		{"1 gt= 2", false},
		{"3 = 3", true},
		{"3 = 3.0", true},
		{"3 != 4", true},
		{"foo = foo", true},
		{"'a b' = 'a b'", true},
		{"foo != bar", true},
		{"true", true},
		{"FALSE", false},
		{"1 lt 2 and 3 gt 2", true},
		{"1 lt 2 and 3 lt 2", false},
		{"1 gt 2 or 3 gt 2", true},
		{"(1 gt 2 or 3 gt 2) and (foo = foo)", true},
		{"1 gt 2 or 3 gt 2 and 1 = 2", false},
		{"5 < 6", true},
		{"5 >= 6", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []string{
		"",
		"i lt",
		"foo lt bar",
		"(1 lt 2",
		"1 lt 2)",
		"'open",
		"maybe",
		"1 lt 2 and",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Evaluate(expr)
			assert.Error(t, err)
		})
	}
}
