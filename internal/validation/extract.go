package validation

import (
	"sort"

	"rehearse/internal/failure"
	"rehearse/internal/jsonpath"
	"rehearse/internal/message"
	"rehearse/internal/testcontext"
)

// Extractor copies values out of a received message into test variables.
type Extractor struct {
	// Headers maps header name to variable name.
	Headers map[string]string
	// JSONPaths maps a payload path to variable name.
	JSONPaths map[string]string
	// Payload, when set, receives the whole payload text.
	Payload string
}

// Empty reports whether the extractor has nothing to do.
func (e Extractor) Empty() bool {
	return len(e.Headers) == 0 && len(e.JSONPaths) == 0 && e.Payload == ""
}

// Extract binds the configured variables in tc.
func (e Extractor) Extract(msg *message.Message, tc *testcontext.Context) error {
	for _, header := range sortedKeys(e.Headers) {
		value, ok := msg.HeaderString(header)
		if !ok {
			return failure.Validation("failed to extract variable '%s': header '%s' not found", e.Headers[header], header)
		}
		tc.SetVariable(e.Headers[header], value)
	}

	if len(e.JSONPaths) > 0 {
		data, err := jsonpath.Decode(msg.Payload)
		if err != nil {
			return failure.Validation("failed to extract variables from payload: %v", err)
		}
		for _, path := range sortedKeys(e.JSONPaths) {
			value, err := jsonpath.Get(data, path)
			if err != nil {
				return failure.Validation("failed to extract variable '%s': %v", e.JSONPaths[path], err)
			}
			tc.SetVariable(e.JSONPaths[path], jsonpath.String(value))
		}
	}

	if e.Payload != "" {
		tc.SetVariable(e.Payload, msg.PayloadString())
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
