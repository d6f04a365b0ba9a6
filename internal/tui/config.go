package tui

import "github.com/Veraticus/casa/internal/tui/themes"

// Config holds TUI configuration.
type Config struct {
	Theme    themes.Theme
	Title    string
	Width    int
	Height   int
	ShowHelp bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:    themes.Default,
		Title:    "Casa",
		Width:    80,
		Height:   24,
		ShowHelp: true,
	}
}

// WithTheme selects a theme by name.
func WithTheme(name string) Option {
	return func(c *Config) {
		c.Theme = themes.GetTheme(name)
	}
}

// WithSize sets the initial size before the first resize event.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(c *Config) {
		c.Title = title
	}
}

// WithHelp toggles the key help line.
func WithHelp(show bool) Option {
	return func(c *Config) {
		c.ShowHelp = show
	}
}
