package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/failure"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

func newContext() *testcontext.Context {
	return testcontext.NewFactory().NewContext()
}

func TestValidateHeaders(t *testing.T) {
	tc := newContext()
	received := message.New("x").SetHeader("operation", "createOrder").SetHeader("Region", "eu-1")

	tests := []struct {
		name    string
		control *message.Message
		opts    HeaderContext
		wantErr string
	}{
		{"literal", message.New(nil).SetHeader("operation", "createOrder"), HeaderContext{}, ""},
		{"matcher", message.New(nil).SetHeader("operation", "@startsWith('create')@"), HeaderContext{}, ""},
		{"ignore missing", message.New(nil).SetHeader("absent", "@ignore@"), HeaderContext{}, ""},
		{"mismatch", message.New(nil).SetHeader("operation", "deleteOrder"), HeaderContext{}, "expected 'deleteOrder' but was 'createOrder'"},
		{"missing", message.New(nil).SetHeader("absent", "x"), HeaderContext{}, "header 'absent' missing"},
		{"case sensitive", message.New(nil).SetHeader("region", "eu-1"), HeaderContext{}, "header 'region' missing"},
		{"ignore case", message.New(nil).SetHeader("region", "eu-1"), HeaderContext{IgnoreCase: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaders(received, tt.control, tc, tt.opts)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, failure.Is(err, failure.KindValidation))
		})
	}
}

func TestValidatePayloadText(t *testing.T) {
	tc := newContext()

	assert.NoError(t, ValidatePayload(message.New(" Hello \r\n"), message.New("Hello"), tc, JSONContext{}))
	assert.NoError(t, ValidatePayload(message.New("anything"), message.New(nil), tc, JSONContext{}))
	assert.NoError(t, ValidatePayload(message.New("Hello World"), message.New("@contains('World')@"), tc, JSONContext{}))

	err := ValidatePayload(message.New("Hello"), message.New("Bye"), tc, JSONContext{})
	assert.True(t, failure.Is(err, failure.KindValidation))
}

func TestValidatePayloadJSON(t *testing.T) {
	tc := newContext()
	received := message.New(`{"id": 7, "status": "NEW", "items": [{"sku": "a"}, {"sku": "b"}], "ts": "2024"}`)

	tests := []struct {
		name    string
		control string
		jc      JSONContext
		wantErr string
	}{
		{"equal", `{"id": 7, "status": "NEW", "items": [{"sku": "a"}, {"sku": "b"}], "ts": "2024"}`, JSONContext{Strict: true}, ""},
		{"ignore leaf", `{"id": 7, "status": "@ignore@", "items": [{"sku": "a"}, {"sku": "b"}], "ts": "@ignore@"}`, JSONContext{Strict: true}, ""},
		{"matcher leaf", `{"id": "@greaterThan(5)@", "status": "NEW", "items": [{"sku": "a"}, {"sku": "b"}], "ts": "2024"}`, JSONContext{Strict: true}, ""},
		{"unexpected field", `{"id": 7, "status": "NEW", "items": [{"sku": "a"}, {"sku": "b"}]}`, JSONContext{Strict: true}, "unexpected JSON field '$.ts'"},
		{"lenient", `{"id": 7}`, JSONContext{}, ""},
		{"ignored path", `{"id": 7, "status": "NEW", "items": []}`, JSONContext{Ignore: []string{"$.items"}}, ""},
		{"wrong value", `{"id": 8}`, JSONContext{}, "values not equal for JSON field '$.id'"},
		{"array length", `{"items": [{"sku": "a"}]}`, JSONContext{}, "has 2 elements, expected 1"},
		{"nested value", `{"items": [{"sku": "a"}, {"sku": "c"}]}`, JSONContext{}, "JSON field '$.items[1].sku'"},
		{"missing field", `{"nope": 1}`, JSONContext{}, "missing JSON field '$.nope'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(received, message.New(tt.control), tc, tt.jc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJSONPath(t *testing.T) {
	tc := newContext()
	tc.SetVariable("expectedStatus", "NEW")
	received := message.New(`{"order": {"id": 7, "status": "NEW"}}`)

	err := ValidateJSONPath(received, JSONPathContext{Expressions: map[string]string{
		"$.order.id":     "7",
		"$.order.status": "${expectedStatus}",
		"$.order.note":   "@ignore@",
	}}, tc)
	assert.NoError(t, err)

	err = ValidateJSONPath(received, JSONPathContext{Expressions: map[string]string{"order.id": "8"}}, tc)
	assert.True(t, failure.Is(err, failure.KindValidation))
}

func TestDefaultValidatorAndRegistry(t *testing.T) {
	tc := newContext()

	validators := Validators(tc)
	require.Len(t, validators, 1)
	assert.IsType(t, DefaultValidator{}, validators[0])

	err := validators[0].Validate(nil, nil, tc, nil)
	assert.True(t, failure.Is(err, failure.KindValidation))

	received := message.New(`{"a": 1}`).SetHeader("h", "v")
	control := message.New(`{"a": 1}`).SetHeader("h", "v")
	assert.NoError(t, DefaultValidator{}.Validate(received, control, tc, []Context{
		JSONPathContext{Expressions: map[string]string{"a": "1"}},
	}))

	tc.References().Bind("custom", ValidatorFunc(func(*message.Message, *message.Message, *testcontext.Context, []Context) error {
		return errors.New("custom")
	}))
	validators = Validators(tc)
	require.Len(t, validators, 1)
	assert.EqualError(t, validators[0].Validate(received, control, tc, nil), "custom")
}

func TestExtractor(t *testing.T) {
	tc := newContext()
	msg := message.New(`{"order": {"id": 7}}`).SetHeader("operation", "create")

	e := Extractor{
		Headers:   map[string]string{"operation": "op"},
		JSONPaths: map[string]string{"$.order.id": "orderId"},
		Payload:   "body",
	}
	assert.False(t, e.Empty())
	require.NoError(t, e.Extract(msg, tc))

	assert.Equal(t, "create", tc.VariableOr("op", nil))
	assert.Equal(t, "7", tc.VariableOr("orderId", nil))
	assert.Equal(t, `{"order": {"id": 7}}`, tc.VariableOr("body", nil))

	err := Extractor{Headers: map[string]string{"missing": "x"}}.Extract(msg, tc)
	assert.True(t, failure.Is(err, failure.KindValidation))
	assert.True(t, Extractor{}.Empty())
}
