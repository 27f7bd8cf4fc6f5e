package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tonhe/nocwatch/tui/styles"
)

// Health counts interfaces per state for the status bar.
type Health struct {
	Up, Down, Degraded, AdminDown int
}

// Total returns the number of interfaces counted.
func (h Health) Total() int {
	return h.Up + h.Down + h.Degraded + h.AdminDown
}

// RenderStatusBar renders the two-line footer: refresh and health figures on
// top, key hints below. errMsg replaces the health figures when non-empty.
func RenderStatusBar(theme styles.Theme, refresh time.Duration, lastTick time.Time, h Health, errMsg string, width int) string {
	bg := theme.Base01
	bgStyle := lipgloss.NewStyle().Background(bg)
	sep := lipgloss.NewStyle().Foreground(theme.Base03).Background(bg).Render(" | ")

	pollSeg := lipgloss.NewStyle().Foreground(theme.Base05).Background(bg).Render(fmt.Sprintf("refresh: %s", refresh))
	lastStr := "never"
	if !lastTick.IsZero() {
		lastStr = lastTick.Local().Format("15:04:05")
	}
	lastSeg := lipgloss.NewStyle().Foreground(theme.Base05).Background(bg).Render(fmt.Sprintf("last tick: %s", lastStr))

	var healthSeg string
	if errMsg != "" {
		healthSeg = lipgloss.NewStyle().Foreground(theme.Base08).Background(bg).Render(errMsg)
	} else {
		healthColor := theme.Base0B
		switch {
		case h.Down > 0:
			healthColor = theme.Base08
		case h.Degraded > 0:
			healthColor = theme.Base0A
		}
		healthSeg = lipgloss.NewStyle().Foreground(healthColor).Background(bg).
			Render(fmt.Sprintf("%d/%d up  %d down  %d degraded  %d disabled",
				h.Up, h.Total(), h.Down, h.Degraded, h.AdminDown))
	}

	topContent := bgStyle.Render(" ") + pollSeg + sep + lastSeg + sep + healthSeg
	topWidth := lipgloss.Width(topContent)
	if topWidth < width {
		topContent += bgStyle.Render(strings.Repeat(" ", width-topWidth))
	}

	keyStyle := lipgloss.NewStyle().Foreground(theme.Base0D).Background(bg).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(theme.Base04).Background(bg)
	spacer := bgStyle.Render("  ")

	keys := bgStyle.Render(" ") +
		keyStyle.Render("enter") + descStyle.Render(":detail") + spacer +
		keyStyle.Render("f") + descStyle.Render(":problems") + spacer +
		keyStyle.Render("e") + descStyle.Render(":events") + spacer +
		keyStyle.Render("r") + descStyle.Render(":refresh") + spacer +
		keyStyle.Render("t") + descStyle.Render(":theme") + spacer +
		keyStyle.Render("?") + descStyle.Render(":help") + spacer +
		keyStyle.Render("q") + descStyle.Render(":quit")

	keysWidth := lipgloss.Width(keys)
	if keysWidth < width {
		keys += bgStyle.Render(strings.Repeat(" ", width-keysWidth))
	}

	return lipgloss.JoinVertical(lipgloss.Left, topContent, keys)
}
