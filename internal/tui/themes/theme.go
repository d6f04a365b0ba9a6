// Package themes holds the color schemes of the chat UI.
package themes

import "github.com/charmbracelet/lipgloss"

// Palette is the handful of colors a theme is built from.
type Palette struct {
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Surface lipgloss.Color
	User    lipgloss.Color
	Bot     lipgloss.Color
	Info    lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color
}

// Theme defines the visual style of the chat.
type Theme struct {
	Title         lipgloss.Style
	UserLabel     lipgloss.Style
	BotLabel      lipgloss.Style
	ActionBox     lipgloss.Style
	Chip          lipgloss.Style
	StatusPending lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	Palette       Palette
}

// New builds a theme from p.
func New(p Palette) Theme {
	bold := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return Theme{
		Palette:   p,
		Title:     bold(p.Text),
		UserLabel: bold(p.User),
		BotLabel:  bold(p.Bot),
		ActionBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Warning).
			Padding(0, 1),
		Chip: lipgloss.NewStyle().
			Background(p.Surface).
			Foreground(p.Text).
			Padding(0, 1),
		StatusPending: lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		StatusInfo:    bold(p.Info),
		StatusError:   bold(p.Error),
		StatusWarning: bold(p.Warning),
		StatusSuccess: bold(p.Success),
	}
}

// Default uses the casa terracotta and sage colors.
var Default = New(Palette{
	Text:    "#fafafa",
	Muted:   "#8a8a8a",
	Surface: "#3d405b",
	User:    "#e07a5f",
	Bot:     "#81b29a",
	Info:    "#3b82f6",
	Warning: "#f2cc8f",
	Error:   "#ef4444",
	Success: "#81b29a",
})

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = New(Palette{
	Text:    "#cdd6f4",
	Muted:   "#6c7086",
	Surface: "#45475a",
	User:    "#f5c2e7",
	Bot:     "#a6e3a1",
	Info:    "#89dceb",
	Warning: "#f9e2af",
	Error:   "#f38ba8",
	Success: "#a6e3a1",
})

// GetTheme returns a theme by name, falling back to Default.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
