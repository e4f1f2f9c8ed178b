package tools

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// GrepTool implements the grep tool.
type GrepTool struct {
	workspace Workspace
	limits    OutputLimits
}

// NewGrepTool creates a new GrepTool.
func NewGrepTool(ws Workspace, limits OutputLimits) *GrepTool {
	return &GrepTool{
		workspace: ws,
		limits:    limits,
	}
}

// GrepMatch is one matching line.
type GrepMatch struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Match      string `json:"match"`
	Context    string `json:"context,omitempty"`
}

const grepContextLines = 2

func (t *GrepTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GrepToolName,
		Description: "Search file contents with a regular expression. Returns matching lines with surrounding context, newest files first.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regular expression (RE2 syntax)",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "File or directory to search (defaults to the workspace root)",
				},
				"include": map[string]any{
					"type":        "string",
					"description": "Glob filter on file names, e.g. '*.go' or '*.{ts,tsx}'",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of matches to return",
				},
			},
			"required":             []any{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	warning := WarnUnknownParams(args, []string{"pattern", "path", "include", "max_results"})

	pattern, err := stringArg(args, "pattern")
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, NewToolError(ErrInvalidParams, "pattern is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewToolErrorf(ErrInvalidParams, "invalid regex pattern: %v", err)
	}
	include, err := stringArg(args, "include")
	if err != nil {
		return nil, err
	}
	if include != "" && !doublestar.ValidatePattern(include) {
		return nil, NewToolErrorf(ErrInvalidParams, "invalid include pattern: %s", include)
	}
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	searchPath, err := t.workspace.Resolve(path)
	if err != nil {
		return nil, err
	}
	maxResults, err := intArg(args, "max_results")
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = t.limits.MaxResults
	}

	files, err := collectFiles(ctx, searchPath, include)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewToolError(ErrFileNotFound, searchPath)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "failed to collect files: %v", err)
	}
	sortFilesByMtime(files)

	var matches []GrepMatch
	for _, file := range files {
		if ctx.Err() != nil {
			return nil, NewToolError(ErrTimeout, "grep timed out after 1 minute; try a more specific pattern or path")
		}
		if len(matches) >= maxResults {
			break
		}
		fileMatches, err := searchFile(file, re, maxResults-len(matches))
		if err != nil {
			continue
		}
		matches = append(matches, fileMatches...)
	}

	if len(matches) == 0 {
		return warning + "No matches found.", nil
	}
	return warning + formatGrepResults(matches, len(matches) >= maxResults), nil
}

// collectFiles lists the files under searchPath, skipping hidden entries.
func collectFiles(ctx context.Context, searchPath, include string) ([]string, error) {
	info, err := os.Stat(searchPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{searchPath}, nil
	}

	var files []string
	err = filepath.WalkDir(searchPath, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		if path != searchPath && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if include != "" {
			if match, _ := doublestar.Match(include, d.Name()); !match {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// sortFilesByMtime sorts files newest first.
func sortFilesByMtime(files []string) {
	mtimes := make(map[string]int64, len(files))
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			mtimes[f] = info.ModTime().UnixNano()
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		return mtimes[files[i]] > mtimes[files[j]]
	})
}

// searchFile returns up to maxMatches matches in one text file.
func searchFile(path string, re *regexp.Regexp, maxMatches int) ([]GrepMatch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	if isBinaryContent(buf[:n]) {
		return nil, fmt.Errorf("binary file")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var matches []GrepMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		matches = append(matches, GrepMatch{
			FilePath:   path,
			LineNumber: i + 1,
			Match:      line,
			Context:    buildContext(lines, i, grepContextLines),
		})
		if len(matches) >= maxMatches {
			break
		}
	}
	return matches, nil
}

// buildContext renders the lines around a match, marking the match with ">".
func buildContext(lines []string, matchIdx, contextLines int) string {
	start := max(matchIdx-contextLines, 0)
	end := min(matchIdx+contextLines+1, len(lines))

	var sb strings.Builder
	for i := start; i < end; i++ {
		prefix := "  "
		if i == matchIdx {
			prefix = "> "
		}
		fmt.Fprintf(&sb, "%s%d: %s\n", prefix, i+1, lines[i])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// formatGrepResults formats grep results for the model.
func formatGrepResults(matches []GrepMatch, truncated bool) string {
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "%s:%d\n", m.FilePath, m.LineNumber)
		sb.WriteString(m.Context)
		sb.WriteString("\n")
	}
	if truncated {
		sb.WriteString("\n[Results truncated at limit]")
	}
	return sb.String()
}
