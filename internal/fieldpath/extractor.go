// Package fieldpath extracts values from loosely shaped provider payloads.
//
// Title-data providers return nested, inconsistently populated trees whose
// field names drift between versions. Rather than branching per shape, each
// canonical field declares an ordered list of candidate paths and the first
// non-empty hit wins.
package fieldpath

import (
	"fmt"
	"strings"
)

// Get extracts a value from a nested map using a dot-separated path
// For example: Get(data, "user.profile.name")
// Also supports array access: "items[0].name" or "items.0.name"
func Get(data map[string]interface{}, path string) interface{} {
	if path == "" || data == nil {
		return nil
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for _, part := range parts {
		if current == nil {
			return nil
		}

		// Check for array access
		if strings.Contains(part, "[") && strings.Contains(part, "]") {
			// Handle array[index] syntax
			bracketIdx := strings.Index(part, "[")
			arrayName := part[:bracketIdx]
			indexStr := part[bracketIdx+1 : len(part)-1]

			if m, ok := current.(map[string]interface{}); ok {
				if arr, exists := m[arrayName]; exists {
					if arrSlice, ok := arr.([]interface{}); ok {
						var idx int
						if _, err := fmt.Sscanf(indexStr, "%d", &idx); err == nil {
							if idx >= 0 && idx < len(arrSlice) {
								current = arrSlice[idx]
								continue
							}
						}
					}
				}
			}
			return nil
		}

		switch v := current.(type) {
		case map[string]interface{}:
			var exists bool
			current, exists = v[part]
			if !exists {
				return nil
			}

		case []interface{}:
			// Handle numeric string as array index
			var idx int
			if _, err := fmt.Sscanf(part, "%d", &idx); err == nil && idx >= 0 && idx < len(v) {
				current = v[idx]
			} else {
				return nil
			}

		default:
			return nil
		}
	}

	return current
}

// Extract walks the candidate paths in priority order and returns the first
// non-empty string value found, or "" if none of the paths resolve.
func Extract(data map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		value := Get(data, path)
		if s := stringify(value); s != "" {
			return s
		}
	}
	return ""
}

// ExtractAny returns the first non-nil value along the candidate paths.
// Use when the caller needs the raw node (a sub-tree or list), not a string.
func ExtractAny(data map[string]interface{}, paths ...string) interface{} {
	for _, path := range paths {
		if value := Get(data, path); !isEmpty(value) {
			return value
		}
	}
	return nil
}

// stringify renders scalar leaves as strings. Maps and slices are not
// scalars and render empty so a structural node never masquerades as a
// field value.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]interface{}, []interface{}:
		return ""
	case float64:
		// JSON numbers decode as float64; render integers without exponent
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]interface{}:
		return len(v) == 0
	case []interface{}:
		return len(v) == 0
	default:
		return false
	}
}
