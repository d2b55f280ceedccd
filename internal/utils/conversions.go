package utils

import "strings"

// ToStringSlice keeps the string elements of a decoded JSON array.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// FirstString returns the first non-blank string held by v, which may be a
// string, a []string or a decoded JSON array.
func FirstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	case []any:
		return FirstString(ToStringSlice(t))
	}
	return ""
}
