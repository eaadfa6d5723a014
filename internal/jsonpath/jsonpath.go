// Package jsonpath navigates decoded JSON documents with simple dotted paths
// such as "order.items[0].sku" (an optional leading "$." is accepted).
package jsonpath

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Decode turns a payload into a generic JSON value. Strings and byte slices
// are parsed; maps and slices are returned as-is.
func Decode(payload interface{}) (interface{}, error) {
	switch p := payload.(type) {
	case string:
		return unmarshal([]byte(p))
	case []byte:
		return unmarshal(p)
	case map[string]interface{}, []interface{}:
		return p, nil
	case nil:
		return nil, fmt.Errorf("payload is empty")
	default:
		// Round-trip structs and typed maps through JSON
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("payload of type %T is not JSON serializable: %w", p, err)
		}
		return unmarshal(data)
	}
}

func unmarshal(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return v, nil
}

// IsJSON reports whether s looks like a JSON object or array.
func IsJSON(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// Get extracts a value from nested data using a dotted path.
func Get(data interface{}, path string) (interface{}, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return data, nil
	}

	current := data
	for _, part := range strings.Split(path, ".") {
		name, indexes, err := splitIndexes(part)
		if err != nil {
			return nil, fmt.Errorf("invalid path '%s': %w", path, err)
		}

		if name != "" {
			obj, ok := current.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("cannot navigate path '%s': not an object at '%s'", path, name)
			}
			value, exists := obj[name]
			if !exists {
				return nil, fmt.Errorf("path '%s' not found", path)
			}
			current = value
		}

		for _, idx := range indexes {
			arr, ok := current.([]interface{})
			if !ok {
				return nil, fmt.Errorf("cannot navigate path '%s': not an array at '%s'", path, part)
			}
			if idx < 0 || idx >= len(arr) {
				return nil, fmt.Errorf("path '%s': index %d out of range", path, idx)
			}
			current = arr[idx]
		}
	}

	return current, nil
}

// splitIndexes separates "items[0][1]" into "items" and [0 1].
func splitIndexes(part string) (string, []int, error) {
	open := strings.Index(part, "[")
	if open < 0 {
		return part, nil, nil
	}
	name := part[:open]
	var indexes []int
	rest := part[open:]
	for rest != "" {
		if !strings.HasPrefix(rest, "[") {
			return "", nil, fmt.Errorf("unexpected %q", rest)
		}
		end := strings.Index(rest, "]")
		if end < 0 {
			return "", nil, fmt.Errorf("missing ']' in %q", part)
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("index %q is not a number", rest[1:end])
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return name, indexes, nil
}

// String renders a JSON value for comparison with string expectations.
// Whole floats print without a fraction so 3 matches "3".
func String(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Equal compares two values for equality, handling type conversions
func Equal(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == expected
	}

	actualVal := reflect.ValueOf(actual)
	expectedVal := reflect.ValueOf(expected)

	if actualVal.Kind() == reflect.Slice || actualVal.Kind() == reflect.Array {
		if expectedVal.Kind() != reflect.Slice && expectedVal.Kind() != reflect.Array {
			return false
		}
		if actualVal.Len() != expectedVal.Len() {
			return false
		}
		for i := 0; i < actualVal.Len(); i++ {
			if !Equal(actualVal.Index(i).Interface(), expectedVal.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	if actualVal.Kind() == reflect.Map && expectedVal.Kind() == reflect.Map {
		if len(actualVal.MapKeys()) != len(expectedVal.MapKeys()) {
			return false
		}
		for _, key := range expectedVal.MapKeys() {
			actualValue := actualVal.MapIndex(key)
			if !actualValue.IsValid() {
				return false
			}
			if !Equal(actualValue.Interface(), expectedVal.MapIndex(key).Interface()) {
				return false
			}
		}
		return true
	}

	if actualVal.Type().Comparable() && expectedVal.Type().Comparable() && actual == expected {
		return true
	}

	// For everything else compare the textual form
	return String(actual) == String(expected)
}
