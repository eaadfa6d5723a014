package template

// MergeVariables merges several variable sets into one.
// Later sets override values from earlier ones.
func MergeVariables(sets ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, set := range sets {
		for key, value := range set {
			result[key] = value
		}
	}

	return result
}
