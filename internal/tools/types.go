// Package tools provides in-process tools for the agent loop. They are
// served through Registry, which satisfies agent.ToolProvider.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// Tool is a single in-process tool.
type Tool interface {
	Spec() llm.ToolSpec
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolErrorType provides structured errors the model can act on.
type ToolErrorType string

const (
	ErrFileNotFound       ToolErrorType = "FILE_NOT_FOUND"
	ErrInvalidParams      ToolErrorType = "INVALID_PARAMS"
	ErrPathNotInWorkspace ToolErrorType = "PATH_NOT_IN_WORKSPACE"
	ErrExecutionFailed    ToolErrorType = "EXECUTION_FAILED"
	ErrBinaryFile         ToolErrorType = "BINARY_FILE"
	ErrTimeout            ToolErrorType = "TIMEOUT"
)

// ToolError provides structured error information for retry logic.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...any) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Tool specification names
const (
	ReadFileToolName = "read_file"
	GrepToolName     = "grep"
	GlobToolName     = "glob"
)

// AllToolNames returns all built-in tool names.
func AllToolNames() []string {
	return []string{ReadFileToolName, GrepToolName, GlobToolName}
}

// OutputLimits defines limits for tool output.
type OutputLimits struct {
	MaxLines   int   // Max lines for read_file (default 2000)
	MaxBytes   int64 // Max bytes per tool output (default 50KB)
	MaxResults int   // Max results for grep/glob (default 100)
}

// DefaultOutputLimits returns the default output limits.
func DefaultOutputLimits() OutputLimits {
	return OutputLimits{
		MaxLines:   2000,
		MaxBytes:   50 * 1024,
		MaxResults: 100,
	}
}

// Workspace confines tool paths to a root directory. An empty root allows
// any path.
type Workspace struct {
	Root string
}

// Resolve makes p absolute (relative paths are taken from the root, or the
// working directory without one) and rejects paths that leave the root.
func (w Workspace) Resolve(p string) (string, error) {
	base := w.Root
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", NewToolErrorf(ErrExecutionFailed, "cannot get working directory: %v", err)
		}
		base = wd
	}
	if p == "" {
		p = base
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	if w.Root == "" {
		return p, nil
	}

	root, err := filepath.Abs(w.Root)
	if err != nil {
		return "", NewToolErrorf(ErrExecutionFailed, "cannot resolve root: %v", err)
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewToolErrorf(ErrPathNotInWorkspace, "%s is outside %s", p, root)
	}
	return p, nil
}
