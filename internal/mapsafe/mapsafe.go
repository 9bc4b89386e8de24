// Package mapsafe reads typed values out of loosely typed parameter maps, as
// produced by YAML and JSON decoding.
package mapsafe

import (
	"fmt"
	"time"
)

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		switch x := val.(type) {
		case int:
			return any(x).(T)
		case int64:
			return any(int(x)).(T)
		case uint64:
			return any(int(x)).(T)
		case float64:
			return any(int(x)).(T)
		}
	case float64:
		switch x := val.(type) {
		case float64:
			return any(x).(T)
		case int:
			return any(float64(x)).(T)
		case int64:
			return any(float64(x)).(T)
		}
	default:
		if v, ok := val.(T); ok {
			return v
		}
	}

	return defaultValue
}

// Duration reads a duration given either as a Go duration string ("30s") or
// as a number of seconds.
func Duration(m map[string]any, key string, defaultValue time.Duration) time.Duration {
	switch x := m[key].(type) {
	case string:
		if d, err := time.ParseDuration(x); err == nil {
			return d
		}
	case int:
		return time.Duration(x) * time.Second
	case float64:
		return time.Duration(x * float64(time.Second))
	}
	return defaultValue
}

// Strings reads a list of scalars as strings.
func Strings(m map[string]any, key string) []string {
	switch x := m[key].(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, v := range x {
			out = append(out, fmt.Sprint(v))
		}
		return out
	}
	return nil
}
