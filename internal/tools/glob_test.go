package tools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "pkg", "deep", "util.go"), "package deep")
	writeFile(t, filepath.Join(dir, "README.md"), "# hi")
	writeFile(t, filepath.Join(dir, ".git", "config.go"), "hidden")

	tool := NewGlobTool(Workspace{Root: dir}, DefaultOutputLimits())
	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.go"})
	if err != nil {
		t.Fatal(err)
	}
	s := out.(string)
	for _, want := range []string{"main.go", filepath.Join("pkg", "deep", "util.go")} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in:\n%s", want, s)
		}
	}
	if strings.Contains(s, "README.md") || strings.Contains(s, ".git") {
		t.Errorf("unexpected entries:\n%s", s)
	}
	if !strings.HasPrefix(s, "[f] ") {
		t.Errorf("format = %q", s)
	}
}

func TestGlobTool_Truncates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, filepath.Join(dir, name), name)
	}
	limits := DefaultOutputLimits()
	limits.MaxResults = 2
	out, err := NewGlobTool(Workspace{Root: dir}, limits).Execute(context.Background(), map[string]any{"pattern": "*.txt"})
	if err != nil {
		t.Fatal(err)
	}
	s := out.(string)
	if !strings.HasSuffix(s, "[Results truncated at 2 files]") {
		t.Errorf("out = %q", s)
	}
}

func TestGlobTool_Errors(t *testing.T) {
	dir := t.TempDir()
	tool := NewGlobTool(Workspace{Root: dir}, DefaultOutputLimits())
	ctx := context.Background()

	if _, err := tool.Execute(ctx, map[string]any{}); toolErrType(err) != ErrInvalidParams {
		t.Errorf("missing pattern: %v", err)
	}
	if _, err := tool.Execute(ctx, map[string]any{"pattern": "[abc"}); toolErrType(err) != ErrInvalidParams {
		t.Errorf("bad pattern: %v", err)
	}
	if _, err := tool.Execute(ctx, map[string]any{"pattern": "*", "path": "/"}); toolErrType(err) != ErrPathNotInWorkspace {
		t.Errorf("outside root: %v", err)
	}
	out, err := tool.Execute(ctx, map[string]any{"pattern": "*.none"})
	if err != nil || out != "No files matched the pattern." {
		t.Errorf("no match = %v, %v", out, err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		12:          "  12B",
		2048:        "   2K",
		5 * 1 << 20: "   5M",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
