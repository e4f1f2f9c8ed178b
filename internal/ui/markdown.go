package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

type rendererKey struct {
	theme *Theme
	width int
}

// renderers caches glamour renderers by theme and width.
var renderers sync.Map // map[rendererKey]*glamour.TermRenderer

func getRenderer(theme *Theme, width int) (*glamour.TermRenderer, error) {
	key := rendererKey{theme: theme, width: width}
	if cached, ok := renderers.Load(key); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	style := GlamourStyleFromTheme(theme)
	margin := uint(0)
	style.Document.Margin = &margin
	style.CodeBlock.Margin = &margin

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers.Store(key, renderer)
	return renderer, nil
}

// RenderMarkdown renders markdown with the theme's glamour style.
// On error, returns the original content unchanged.
func RenderMarkdown(theme *Theme, content string, width int) string {
	if content == "" {
		return ""
	}
	rendered, err := RenderMarkdownWithError(theme, content, width)
	if err != nil {
		return content
	}
	return rendered
}

// RenderMarkdownWithError renders markdown content and returns any errors.
func RenderMarkdownWithError(theme *Theme, content string, width int) (string, error) {
	renderer, err := getRenderer(theme, width)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rendered), nil
}
