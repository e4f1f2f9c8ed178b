package tools

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// ReadFileTool implements the read_file tool.
type ReadFileTool struct {
	workspace Workspace
	limits    OutputLimits
}

// NewReadFileTool creates a new ReadFileTool.
func NewReadFileTool(ws Workspace, limits OutputLimits) *ReadFileTool {
	return &ReadFileTool{
		workspace: ws,
		limits:    limits,
	}
}

func (t *ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ReadFileToolName,
		Description: "Read file contents. Returns line-numbered output. Use start_line/end_line for pagination.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{
					"type":        "string",
					"description": "Absolute or workspace-relative path to the file to read",
				},
				"start_line": map[string]any{
					"type":        "integer",
					"description": "1-indexed start line (default: 1)",
				},
				"end_line": map[string]any{
					"type":        "integer",
					"description": "1-indexed end line (default: EOF)",
				},
			},
			"required":             []any{"file_path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	filePath, err := stringArg(args, "file_path")
	if err != nil {
		return nil, err
	}
	if filePath == "" {
		return nil, NewToolError(ErrInvalidParams, "file_path is required")
	}
	startLine, err := intArg(args, "start_line")
	if err != nil {
		return nil, err
	}
	endLine, err := intArg(args, "end_line")
	if err != nil {
		return nil, err
	}

	path, err := t.workspace.Resolve(filePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewToolError(ErrFileNotFound, filePath)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}
	if isBinaryContent(data) {
		return nil, NewToolErrorf(ErrBinaryFile, "%s appears to be a binary file", filePath)
	}

	lines := strings.Split(string(data), "\n")
	totalLines := len(lines)

	start := 0
	if startLine > 0 {
		start = startLine - 1
	}
	if start >= totalLines {
		return nil, NewToolErrorf(ErrInvalidParams, "start_line %d exceeds file length %d", startLine, totalLines)
	}
	end := totalLines
	if endLine > 0 && endLine < totalLines {
		end = endLine
	}
	if start >= end {
		return "No content in requested range.", nil
	}

	selected := lines[start:end]
	truncated := false
	if t.limits.MaxLines > 0 && len(selected) > t.limits.MaxLines {
		selected = selected[:t.limits.MaxLines]
		truncated = true
	}

	var sb strings.Builder
	for i, line := range selected {
		fmt.Fprintf(&sb, "%d: %s\n", start+i+1, line)
	}
	output := strings.TrimSuffix(sb.String(), "\n")

	if t.limits.MaxBytes > 0 && int64(len(output)) > t.limits.MaxBytes {
		output = output[:t.limits.MaxBytes]
		truncated = true
	}
	if truncated {
		output += fmt.Sprintf("\n\n[Output truncated. Total lines: %d. Use start_line/end_line for pagination.]", totalLines)
	}
	return output, nil
}

// isBinaryContent sniffs the first 512 bytes.
func isBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}

	contentType := http.DetectContentType(sample)
	if strings.HasPrefix(contentType, "text/") {
		return false
	}
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "xml") {
		return false
	}
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}
