// Package validation compares a received message against a control message.
//
// The default validator checks control headers, the payload (structurally for
// JSON, textually otherwise) and any JSON path expectations. Expected values
// may be validation matcher expressions such as @startsWith('ord')@, and
// @ignore@ skips a value.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"rehearse/internal/failure"
	"rehearse/internal/jsonpath"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

// Context carries extra validation instructions for one receive.
type Context interface {
	ContextName() string
}

// HeaderContext tunes header validation.
type HeaderContext struct {
	// IgnoreCase compares header names case-insensitively.
	IgnoreCase bool
}

// ContextName implements Context.
func (HeaderContext) ContextName() string { return "header" }

// JSONContext tunes structural JSON payload validation.
type JSONContext struct {
	// Strict rejects received objects that carry keys the control lacks.
	Strict bool
	// Ignore lists dotted paths whose values are skipped.
	Ignore []string
}

// ContextName implements Context.
func (JSONContext) ContextName() string { return "json" }

// JSONPathContext validates single values selected by path.
type JSONPathContext struct {
	Expressions map[string]string
}

// ContextName implements Context.
func (JSONPathContext) ContextName() string { return "jsonpath" }

// Validator validates a received message.
type Validator interface {
	Validate(received, control *message.Message, tc *testcontext.Context, contexts []Context) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(received, control *message.Message, tc *testcontext.Context, contexts []Context) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(received, control *message.Message, tc *testcontext.Context, contexts []Context) error {
	return f(received, control, tc, contexts)
}

// DefaultValidator runs header, payload and JSON path validation.
type DefaultValidator struct{}

// Validate implements Validator.
func (DefaultValidator) Validate(received, control *message.Message, tc *testcontext.Context, contexts []Context) error {
	if received == nil {
		return failure.Validation("received message is empty")
	}

	var headerCtx HeaderContext
	jsonCtx := JSONContext{Strict: true}
	var pathCtxs []JSONPathContext
	for _, c := range contexts {
		switch v := c.(type) {
		case HeaderContext:
			headerCtx = v
		case JSONContext:
			jsonCtx = v
		case JSONPathContext:
			pathCtxs = append(pathCtxs, v)
		}
	}

	if control != nil {
		if err := ValidateHeaders(received, control, tc, headerCtx); err != nil {
			return err
		}
		if err := ValidatePayload(received, control, tc, jsonCtx); err != nil {
			return err
		}
	}
	for _, pc := range pathCtxs {
		if err := ValidateJSONPath(received, pc, tc); err != nil {
			return err
		}
	}
	return nil
}

// Validators returns the validators bound in the test context references,
// or the default validator when none are bound.
func Validators(tc *testcontext.Context) []Validator {
	validators := testcontext.ResolveAll[Validator](tc.References())
	if len(validators) == 0 {
		return []Validator{DefaultValidator{}}
	}
	return validators
}

// ValidateHeaders checks every control header against the received message.
func ValidateHeaders(received, control *message.Message, tc *testcontext.Context, hc HeaderContext) error {
	names := make([]string, 0, len(control.Headers))
	for name := range control.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expected := message.ValueString(control.Headers[name])
		actual, ok := lookupHeader(received, name, hc.IgnoreCase)
		if !ok {
			if expected == "@ignore@" {
				continue
			}
			return failure.Validation("header '%s' missing in received message", name)
		}
		if err := matchValue(tc, "header '"+name+"'", actual, expected); err != nil {
			return err
		}
	}
	return nil
}

func lookupHeader(msg *message.Message, name string, ignoreCase bool) (string, bool) {
	if v, ok := msg.HeaderString(name); ok {
		return v, true
	}
	if !ignoreCase {
		return "", false
	}
	for _, candidate := range msg.HeaderNames() {
		if strings.EqualFold(candidate, name) {
			return msg.HeaderString(candidate)
		}
	}
	return "", false
}

// ValidatePayload compares payloads. An empty control payload skips the
// check. JSON control payloads are compared structurally, anything else as
// trimmed text with normalized line endings.
func ValidatePayload(received, control *message.Message, tc *testcontext.Context, jc JSONContext) error {
	expected := strings.TrimSpace(control.PayloadString())
	if control.Payload == nil || expected == "" {
		return nil
	}
	actual := strings.TrimSpace(received.PayloadString())

	if jsonpath.IsJSON(expected) {
		exp, err := jsonpath.Decode(expected)
		if err != nil {
			return failure.Configuration("control payload is not valid JSON: %v", err)
		}
		act, err := jsonpath.Decode(actual)
		if err != nil {
			return failure.Validation("expected JSON payload but received '%s'", actual)
		}
		ignored := make(map[string]bool, len(jc.Ignore))
		for _, p := range jc.Ignore {
			ignored[strings.TrimPrefix(strings.TrimPrefix(p, "$"), ".")] = true
		}
		return compareJSON(tc, "$", "", act, exp, jc.Strict, ignored)
	}

	normalize := strings.NewReplacer("\r\n", "\n")
	return matchValue(tc, "payload", normalize.Replace(actual), normalize.Replace(expected))
}

func compareJSON(tc *testcontext.Context, display, path string, actual, expected interface{}, strict bool, ignored map[string]bool) error {
	if ignored[path] {
		return nil
	}

	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return failure.Validation("expected JSON object at '%s' but got %s", display, jsonpath.String(actual))
		}
		if strict {
			for key := range act {
				if _, ok := exp[key]; !ok && !ignored[join(path, key)] {
					return failure.Validation("unexpected JSON field '%s.%s'", display, key)
				}
			}
		}
		keys := make([]string, 0, len(exp))
		for key := range exp {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			child, present := act[key]
			if !present {
				if s, ok := exp[key].(string); ok && s == "@ignore@" {
					continue
				}
				return failure.Validation("missing JSON field '%s.%s'", display, key)
			}
			if err := compareJSON(tc, display+"."+key, join(path, key), child, exp[key], strict, ignored); err != nil {
				return err
			}
		}
		return nil

	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return failure.Validation("expected JSON array at '%s' but got %s", display, jsonpath.String(actual))
		}
		if len(act) != len(exp) {
			return failure.Validation("JSON array '%s' has %d elements, expected %d", display, len(act), len(exp))
		}
		for i := range exp {
			elem := fmt.Sprintf("[%d]", i)
			if err := compareJSON(tc, display+elem, path+elem, act[i], exp[i], strict, ignored); err != nil {
				return err
			}
		}
		return nil

	case string:
		return matchValue(tc, "JSON field '"+display+"'", jsonpath.String(actual), exp)

	default:
		if !jsonpath.Equal(actual, expected) {
			return failure.Validation("values not equal for JSON field '%s', expected '%s' but was '%s'",
				display, jsonpath.String(expected), jsonpath.String(actual))
		}
		return nil
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// ValidateJSONPath checks each path expectation against the received
// payload.
func ValidateJSONPath(received *message.Message, pc JSONPathContext, tc *testcontext.Context) error {
	data, err := jsonpath.Decode(received.Payload)
	if err != nil {
		return failure.Validation("cannot validate JSON path on received payload: %v", err)
	}

	paths := make([]string, 0, len(pc.Expressions))
	for p := range pc.Expressions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		expected, err := tc.ReplaceDynamicContent(pc.Expressions[p])
		if err != nil {
			return failure.Configuration("jsonpath '%s': %v", p, err)
		}
		value, err := jsonpath.Get(data, p)
		if err != nil {
			if expected == "@ignore@" {
				continue
			}
			return failure.Validation("jsonpath '%s' not found in received payload: %v", p, err)
		}
		if err := matchValue(tc, "jsonpath '"+p+"'", jsonpath.String(value), expected); err != nil {
			return err
		}
	}
	return nil
}

func matchValue(tc *testcontext.Context, what, actual, expected string) error {
	ok, err := tc.Matchers().Match(actual, expected)
	if err != nil {
		return failure.Configuration("%s: %v", what, err)
	}
	if !ok {
		return failure.Validation("values not equal for %s, expected '%s' but was '%s'", what, expected, actual)
	}
	return nil
}
