// Package theme holds the colour palettes used for terminal output.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme is a named set of colours.
type Theme struct {
	Name    string
	Base    lipgloss.Color
	Text    lipgloss.Color
	Subtext lipgloss.Color
	Overlay lipgloss.Color
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color
}

// CatppuccinMocha is the dark palette.
var CatppuccinMocha = Theme{
	Name:    "mocha",
	Base:    lipgloss.Color("#1e1e2e"),
	Text:    lipgloss.Color("#cdd6f4"),
	Subtext: lipgloss.Color("#a6adc8"),
	Overlay: lipgloss.Color("#6c7086"),
	Primary: lipgloss.Color("#cba6f7"),
	Success: lipgloss.Color("#a6e3a1"),
	Warning: lipgloss.Color("#f9e2af"),
	Error:   lipgloss.Color("#f38ba8"),
	Info:    lipgloss.Color("#89b4fa"),
}

// CatppuccinLatte is the light palette.
var CatppuccinLatte = Theme{
	Name:    "latte",
	Base:    lipgloss.Color("#eff1f5"),
	Text:    lipgloss.Color("#4c4f69"),
	Subtext: lipgloss.Color("#6c6f85"),
	Overlay: lipgloss.Color("#9ca0b0"),
	Primary: lipgloss.Color("#8839ef"),
	Success: lipgloss.Color("#40a02b"),
	Warning: lipgloss.Color("#df8e1d"),
	Error:   lipgloss.Color("#d20f39"),
	Info:    lipgloss.Color("#1e66f5"),
}

// detectDarkBackground is swapped out in tests.
var detectDarkBackground = termenv.HasDarkBackground

// Current picks the theme named by PAVCORE_THEME ("mocha", "latte" or
// "auto"), detecting the terminal background when unset or "auto".
func Current() Theme {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PAVCORE_THEME"))) {
	case "mocha", "dark":
		return CatppuccinMocha
	case "latte", "light":
		return CatppuccinLatte
	}
	if detectDarkBackground() {
		return CatppuccinMocha
	}
	return CatppuccinLatte
}
