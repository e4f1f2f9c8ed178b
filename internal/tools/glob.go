package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// GlobTool implements the glob tool.
type GlobTool struct {
	workspace Workspace
	limits    OutputLimits
}

// NewGlobTool creates a new GlobTool.
func NewGlobTool(ws Workspace, limits OutputLimits) *GlobTool {
	return &GlobTool{
		workspace: ws,
		limits:    limits,
	}
}

// FileEntry represents a file in glob results.
type FileEntry struct {
	FilePath  string    `json:"file_path"`
	IsDir     bool      `json:"is_dir"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

func (t *GlobTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GlobToolName,
		Description: "Find files by glob pattern (supports ** for recursive matching). Returns file metadata sorted by modification time.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern supporting ** for recursive matching, e.g., '**/*.go' or 'src/**/*.ts'",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Base directory for the search (defaults to the workspace root)",
				},
			},
			"required":             []any{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	warning := WarnUnknownParams(args, []string{"pattern", "path"})

	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, NewToolError(ErrInvalidParams, "pattern is required")
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, NewToolErrorf(ErrInvalidParams, "invalid glob pattern: %s", pattern)
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	basePath, err := t.workspace.Resolve(path)
	if err != nil {
		return nil, err
	}

	maxResults := t.limits.MaxResults
	var entries []FileEntry
	err = filepath.WalkDir(basePath, func(p string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		if p != basePath && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(basePath, p)
		if err != nil || relPath == "." {
			return nil
		}
		if matched, _ := doublestar.Match(pattern, filepath.ToSlash(relPath)); !matched {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, FileEntry{
			FilePath:  p,
			IsDir:     d.IsDir(),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
		if maxResults > 0 && len(entries) >= maxResults {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewToolError(ErrTimeout, "glob timed out after 1 minute; try a more specific pattern or path")
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "walk error: %v", err)
	}

	// newest first
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})

	if len(entries) == 0 {
		return warning + "No files matched the pattern.", nil
	}
	return warning + formatGlobResults(entries, maxResults > 0 && len(entries) >= maxResults, maxResults), nil
}

// formatGlobResults formats glob results for the model.
func formatGlobResults(entries []FileEntry, truncated bool, limit int) string {
	var sb strings.Builder
	for _, e := range entries {
		typeIndicator := "f"
		if e.IsDir {
			typeIndicator = "d"
		}
		fmt.Fprintf(&sb, "[%s] %s  %s  %s\n", typeIndicator, formatSize(e.SizeBytes), e.ModTime.Format("2006-01-02 15:04"), e.FilePath)
	}
	if truncated {
		fmt.Fprintf(&sb, "\n[Results truncated at %d files]", limit)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// formatSize formats a byte count as human-readable.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%4dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%4.0f%c", float64(bytes)/float64(div), "KMGTPE"[exp])
}
