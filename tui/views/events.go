package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/tui/styles"
)

// EventsView lists recent transitions, newest first.
type EventsView struct {
	theme  styles.Theme
	sty    *styles.Styles
	events []engine.Transition
	limit  int
	width  int
	height int
}

func NewEventsView(theme styles.Theme, limit int) EventsView {
	return EventsView{theme: theme, sty: styles.NewStyles(theme), limit: max(limit, 1)}
}

// SetTheme restyles the view.
func (v *EventsView) SetTheme(theme styles.Theme) {
	v.theme = theme
	v.sty = styles.NewStyles(theme)
}

// SetEvents replaces the list with a freshly fetched one.
func (v *EventsView) SetEvents(events []engine.Transition) {
	v.events = events
}

// Push adds a live transition ahead of the fetched ones.
func (v *EventsView) Push(t engine.Transition) {
	for _, e := range v.events {
		if t.ID != "" && e.ID == t.ID {
			return
		}
	}
	v.events = append([]engine.Transition{t}, v.events...)
	if len(v.events) > v.limit {
		v.events = v.events[:v.limit]
	}
}

// Len returns the number of transitions held.
func (v EventsView) Len() int {
	return len(v.events)
}

// SetSize updates the available dimensions for the pane.
func (v *EventsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// View renders as many transitions as fit under the pane title.
func (v EventsView) View() string {
	lines := []string{v.sty.PaneTitle.Render(padRight("Recent transitions", v.width))}
	if len(v.events) == 0 {
		lines = append(lines, v.sty.TableCellDim.Render("  none yet"))
		return strings.Join(lines, "\n")
	}

	for _, t := range v.events[:min(len(v.events), max(v.height-1, 0))] {
		ts := time.Unix(t.Timestamp, 0).Local().Format("01-02 15:04:05")
		from := "new"
		if t.From != nil {
			from = string(*t.From)
		}
		where := truncate(fmt.Sprintf("%s/%s", t.Device, t.Iface), 28)
		line := v.sty.EventTime.Render(ts) + "  " +
			v.sty.TableRow.Render(padRight(where, 29)) +
			v.sty.TableCellDim.Render(padRight(from, 11)) +
			v.sty.TableCellDim.Render("-> ") +
			v.sty.State(t.To).Render(padRight(string(t.To), 11)) +
			v.sty.TableRow.Render(t.Diagnostics.String())
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
