package ui

// palette holds colors in Theme field order: primary, secondary, success,
// error, warning, muted, text.
type palette [7]string

func (p palette) config() ThemeConfig {
	return ThemeConfig{
		Primary:   p[0],
		Secondary: p[1],
		Success:   p[2],
		Error:     p[3],
		Warning:   p[4],
		Muted:     p[5],
		Text:      p[6],
	}
}

// PresetThemes maps preset names to colors, hex codes or ANSI numbers.
var PresetThemes = map[string]ThemeConfig{
	"gruvbox":   palette{"#b8bb26", "#83a598", "#b8bb26", "#fb4934", "#fabd2f", "#928374", "#ebdbb2"}.config(),
	"dracula":   palette{"#bd93f9", "#8be9fd", "#50fa7b", "#ff5555", "#f1fa8c", "#6272a4", "#f8f8f2"}.config(),
	"nord":      palette{"#88c0d0", "#81a1c1", "#a3be8c", "#bf616a", "#ebcb8b", "#4c566a", "#eceff4"}.config(),
	"solarized": palette{"#268bd2", "#2aa198", "#859900", "#dc322f", "#b58900", "#586e75", "#839496"}.config(),
	"monokai":   palette{"#a6e22e", "#66d9ef", "#a6e22e", "#f92672", "#e6db74", "#75715e", "#f8f8f2"}.config(),
	"classic":   palette{"10", "4", "10", "9", "11", "245", "15"}.config(),
}
