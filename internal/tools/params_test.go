package tools

import (
	"testing"
)

func TestWarnUnknownParams(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		knownKeys []string
		expected  string
	}{
		{
			name:      "empty args",
			args:      map[string]any{},
			knownKeys: []string{"a", "b"},
			expected:  "",
		},
		{
			name:      "all known keys",
			args:      map[string]any{"a": 1, "b": 2},
			knownKeys: []string{"a", "b"},
			expected:  "",
		},
		{
			name:      "one unknown key",
			args:      map[string]any{"a": 1, "xyz": true},
			knownKeys: []string{"a"},
			expected:  "Unknown parameter 'xyz' was ignored\n",
		},
		{
			name:      "multiple unknown keys sorted",
			args:      map[string]any{"z": 1, "a": 2, "b": 3},
			knownKeys: []string{},
			expected:  "Unknown parameter 'a' was ignored\nUnknown parameter 'b' was ignored\nUnknown parameter 'z' was ignored\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WarnUnknownParams(tt.args, tt.knownKeys)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"n": float64(3), "frac": 1.5, "s": "x"}
	if n, err := intArg(args, "n"); err != nil || n != 3 {
		t.Errorf("intArg(n) = %d, %v", n, err)
	}
	if n, err := intArg(args, "missing"); err != nil || n != 0 {
		t.Errorf("intArg(missing) = %d, %v", n, err)
	}
	if _, err := intArg(args, "frac"); err == nil {
		t.Error("expected error for a fractional number")
	}
	if _, err := intArg(args, "s"); err == nil {
		t.Error("expected error for a string")
	}
}
