package attrs

import "fmt"

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Returns empty string if the key is not found or the value is not a string.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if k == key {
			if v, ok := attrs[i+1].(string); ok {
				return v
			}
		}
	}
	return ""
}

// ToDetails flattens a key-value attribute slice into a string map.
// Non-string keys are skipped; values are formatted with fmt.Sprint.
func ToDetails(attrs []any) map[string]string {
	if len(attrs) < 2 {
		return nil
	}
	out := make(map[string]string, len(attrs)/2)
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			out[k] = v
			continue
		}
		out[k] = fmt.Sprint(attrs[i+1])
	}
	return out
}
