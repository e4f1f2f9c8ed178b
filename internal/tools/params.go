package tools

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// WarnUnknownParams checks args for keys not in knownKeys.
// Returns a warning string (with trailing newline) to prepend to tool output,
// or "" if no unknown keys found.
func WarnUnknownParams(args map[string]any, knownKeys []string) string {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var unknown []string
	for k := range args {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return ""
	}
	sort.Strings(unknown)
	var sb strings.Builder
	for _, k := range unknown {
		sb.WriteString(fmt.Sprintf("Unknown parameter '%s' was ignored\n", k))
	}
	return sb.String()
}

// stringArg returns args[key] as a string, empty when missing.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", NewToolErrorf(ErrInvalidParams, "%s must be a string", key)
	}
	return s, nil
}

// intArg returns args[key] as an int. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, NewToolErrorf(ErrInvalidParams, "%s must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	}
	return 0, NewToolErrorf(ErrInvalidParams, "%s must be an integer", key)
}
