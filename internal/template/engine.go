package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"rehearse/internal/message"
)

// Engine replaces ${name} variable placeholders in test action fields.
type Engine struct {
	// Pattern to match placeholders like ${orderId}
	variablePattern *regexp.Regexp
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		variablePattern: regexp.MustCompile(`\$\{\s*([a-zA-Z_][a-zA-Z0-9_.\-]*)\s*\}`),
	}
}

// Replace replaces all placeholders in a value with values from variables.
// Strings, maps and slices are walked recursively; other values are returned
// as-is.
func (e *Engine) Replace(value interface{}, variables map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return e.ReplaceString(v, variables)
	case map[string]interface{}:
		return e.replaceMap(v, variables)
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, val := range v {
			replaced, err := e.ReplaceString(val, variables)
			if err != nil {
				return nil, fmt.Errorf("error in key '%s': %w", key, err)
			}
			out[key] = replaced
		}
		return out, nil
	case []interface{}:
		return e.replaceSlice(v, variables)
	default:
		return value, nil
	}
}

// ReplaceString replaces placeholders in a single string. Every missing
// variable is reported in one error.
func (e *Engine) ReplaceString(template string, variables map[string]interface{}) (string, error) {
	if !strings.Contains(template, "${") {
		return template, nil
	}

	var missing []string
	result := e.variablePattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		name := e.variablePattern.FindStringSubmatch(placeholder)[1]
		value, exists := variables[name]
		if !exists {
			missing = append(missing, name)
			return placeholder
		}
		return Stringify(value)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unknown variable: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// Stringify renders a variable value the way it is substituted into text.
func Stringify(value interface{}) string {
	switch r := value.(type) {
	case string:
		return r
	case int, int32, int64:
		return fmt.Sprintf("%d", r)
	case float32:
		return strconv.FormatFloat(float64(r), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(r)
	default:
		return message.ValueString(r)
	}
}

func (e *Engine) replaceMap(m map[string]interface{}, variables map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))

	for key, value := range m {
		replacedValue, err := e.Replace(value, variables)
		if err != nil {
			return nil, fmt.Errorf("error in key '%s': %w", key, err)
		}
		result[key] = replacedValue
	}

	return result, nil
}

func (e *Engine) replaceSlice(s []interface{}, variables map[string]interface{}) ([]interface{}, error) {
	result := make([]interface{}, len(s))

	for i, value := range s {
		replacedValue, err := e.Replace(value, variables)
		if err != nil {
			return nil, fmt.Errorf("error at index %d: %w", i, err)
		}
		result[i] = replacedValue
	}

	return result, nil
}

// ExtractVariables returns the sorted, de-duplicated placeholder names used
// anywhere in value.
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)

	return result
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, match := range e.variablePattern.FindAllStringSubmatch(v, -1) {
			variables[match[1]] = true
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case map[string]string:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}
