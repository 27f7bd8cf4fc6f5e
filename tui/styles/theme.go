package styles

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// DefaultSlug names the theme used when none is configured or the configured
// one is unknown.
const DefaultSlug = "solarized-dark"

// Theme is a Base16 colour scheme. The board uses 08 (red) for DOWN,
// 0A (yellow) for DEGRADED, 0B (green) for UP and 03 for disabled
// interfaces.
type Theme struct {
	Slug   string
	Name   string
	Base00 lipgloss.Color // Background
	Base01 lipgloss.Color // Lighter background
	Base02 lipgloss.Color // Selection
	Base03 lipgloss.Color // Comments / dim
	Base04 lipgloss.Color // Light foreground
	Base05 lipgloss.Color // Foreground
	Base06 lipgloss.Color // Light foreground
	Base07 lipgloss.Color // Light background
	Base08 lipgloss.Color // Red
	Base09 lipgloss.Color // Orange
	Base0A lipgloss.Color // Yellow
	Base0B lipgloss.Color // Green
	Base0C lipgloss.Color // Cyan
	Base0D lipgloss.Color // Blue
	Base0E lipgloss.Color // Magenta
	Base0F lipgloss.Color // Brown
}

var (
	DefaultTheme Theme
	slugs        []string
)

func init() {
	slugs = make([]string, 0, len(Themes))
	for slug, t := range Themes {
		t.Slug = slug
		Themes[slug] = t
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)
	DefaultTheme = Themes[DefaultSlug]
}

// Lookup returns the theme with the given slug.
func Lookup(slug string) (Theme, bool) {
	t, ok := Themes[slug]
	return t, ok
}

// Resolve returns the theme with the given slug, or DefaultTheme.
func Resolve(slug string) Theme {
	if t, ok := Themes[slug]; ok {
		return t
	}
	return DefaultTheme
}

// Slugs returns every theme slug in sorted order.
func Slugs() []string {
	return slices.Clone(slugs)
}

// Next returns the theme after slug in sorted order, wrapping at the end.
// An unknown slug continues from the default theme.
func Next(slug string) Theme {
	i, ok := slices.BinarySearch(slugs, slug)
	if !ok {
		i, _ = slices.BinarySearch(slugs, DefaultSlug)
	}
	return Themes[slugs[(i+1)%len(slugs)]]
}
