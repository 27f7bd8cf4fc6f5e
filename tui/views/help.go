package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/tonhe/nocwatch/tui/keys"
	"github.com/tonhe/nocwatch/tui/styles"
)

type helpSection struct {
	title    string
	bindings []key.Binding
}

func helpSections() []helpSection {
	km := keys.DefaultKeyMap
	return []helpSection{
		{"Global", []key.Binding{km.Quit, km.Help, km.Theme, km.Refresh}},
		{"Board", []key.Binding{km.Up, km.Down, km.PageUp, km.PageDown, km.Enter, km.Problems, km.Events}},
		{"Detail", []key.Binding{km.Escape}},
	}
}

// HelpView is a modal overlay listing the key bindings.
type HelpView struct {
	theme   styles.Theme
	sty     *styles.Styles
	width   int
	height  int
	visible bool
}

func NewHelpView(theme styles.Theme) HelpView {
	return HelpView{theme: theme, sty: styles.NewStyles(theme)}
}

// SetTheme restyles the overlay.
func (v *HelpView) SetTheme(theme styles.Theme) {
	v.theme = theme
	v.sty = styles.NewStyles(theme)
}

// Toggle flips the help overlay visibility.
func (v *HelpView) Toggle() {
	v.visible = !v.visible
}

func (v HelpView) IsVisible() bool {
	return v.visible
}

// SetSize updates the available dimensions for the overlay.
func (v *HelpView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// View renders the overlay as a centred box with the title set into its top
// border.
func (v HelpView) View() string {
	modalWidth := 48
	if v.width > 60 {
		modalWidth = min(v.width/2, 56)
	}
	innerWidth := max(modalWidth, 38) - 6

	sectionStyle := lipgloss.NewStyle().Foreground(v.theme.Base0E).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(v.theme.Base0D).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(v.theme.Base05)

	var lines []string
	for _, sec := range helpSections() {
		lines = append(lines, sectionStyle.Render(sec.title))
		for _, b := range sec.bindings {
			h := b.Help()
			lines = append(lines, "  "+keyStyle.Render(padRight(h.Key, 12))+"  "+descStyle.Render(h.Desc))
		}
		lines = append(lines, "")
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(v.theme.Base04).Render("[?] close"))

	modal := v.sty.ModalBorder.Width(innerWidth).Render(strings.Join(lines, "\n"))
	modal = insertTitle(modal, v.sty.ModalTitle.Render(" Keyboard Shortcuts "))

	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, modal)
}

// insertTitle overwrites the start of the box's top border with title.
func insertTitle(box, title string) string {
	lines := strings.Split(box, "\n")
	border := []rune(lines[0])
	t := []rune(title)
	const at = 2
	if at+len(t) >= len(border) {
		return box
	}
	lines[0] = string(border[:at]) + title + string(border[at+len(t):])
	return strings.Join(lines, "\n")
}
