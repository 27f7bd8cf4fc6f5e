package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/tui/components"
	"github.com/tonhe/nocwatch/tui/keys"
	"github.com/tonhe/nocwatch/tui/styles"
)

// Column width constants (minimum widths).
const (
	colInterface = 18
	colState     = 11
	colReason    = 28
	colRx        = 9
	colTx        = 9
	colErr       = 8
	colSparkMin  = 10
)

// BoardView is the status board: one row per interface, grouped by device.
type BoardView struct {
	theme        styles.Theme
	sty          *styles.Styles
	all          []engine.InterfaceStatus
	rows         []engine.InterfaceStatus
	history      *History
	errThreshold float64
	problemsOnly bool
	cursor       int
	width        int
	height       int
}

// NewBoardView creates a BoardView. errThreshold colours the error column.
func NewBoardView(theme styles.Theme, history *History, errThreshold float64) BoardView {
	return BoardView{
		theme:        theme,
		sty:          styles.NewStyles(theme),
		history:      history,
		errThreshold: errThreshold,
	}
}

// SetTheme restyles the view.
func (v *BoardView) SetTheme(theme styles.Theme) {
	v.theme = theme
	v.sty = styles.NewStyles(theme)
}

// Update handles cursor navigation and the problems filter.
func (v BoardView) Update(msg tea.Msg) (BoardView, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	page := max(v.height-2, 1)
	switch {
	case key.Matches(km, keys.DefaultKeyMap.Up):
		v.cursor = max(v.cursor-1, 0)
	case key.Matches(km, keys.DefaultKeyMap.Down):
		v.cursor = min(v.cursor+1, max(len(v.rows)-1, 0))
	case key.Matches(km, keys.DefaultKeyMap.PageUp):
		v.cursor = max(v.cursor-page, 0)
	case key.Matches(km, keys.DefaultKeyMap.PageDown):
		v.cursor = min(v.cursor+page, max(len(v.rows)-1, 0))
	case key.Matches(km, keys.DefaultKeyMap.Problems):
		v.problemsOnly = !v.problemsOnly
		v.filter()
	}
	return v, nil
}

// SetBoard replaces the interfaces shown, keeping the cursor on the same
// interface when it is still present.
func (v *BoardView) SetBoard(board engine.BoardSnapshot) {
	selected, hadSelection := v.Selected()
	v.all = board.Interfaces
	v.filter()
	if hadSelection {
		for i, st := range v.rows {
			if st.Device == selected.Device && st.Iface == selected.Iface {
				v.cursor = i
				return
			}
		}
	}
}

func (v *BoardView) filter() {
	if !v.problemsOnly {
		v.rows = v.all
	} else {
		v.rows = v.rows[:0:0]
		for _, st := range v.all {
			if st.State == engine.StateDown || st.State == engine.StateDegraded {
				v.rows = append(v.rows, st)
			}
		}
	}
	if v.cursor >= len(v.rows) {
		v.cursor = max(len(v.rows)-1, 0)
	}
}

// ProblemsOnly reports whether the board hides healthy interfaces.
func (v BoardView) ProblemsOnly() bool {
	return v.problemsOnly
}

// Selected returns the interface under the cursor.
func (v BoardView) Selected() (engine.InterfaceStatus, bool) {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return engine.InterfaceStatus{}, false
	}
	return v.rows[v.cursor], true
}

// SetSize updates the available dimensions for the view.
func (v *BoardView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// View renders the board.
func (v BoardView) View() string {
	if len(v.rows) == 0 {
		return v.renderEmpty()
	}
	return v.renderTable()
}

func (v BoardView) sparkWidth() int {
	fixed := colInterface + colState + colReason + colRx + colTx + colErr
	return max(v.width-fixed-1, colSparkMin)
}

func (v BoardView) renderTable() string {
	wSpark := v.sparkWidth()
	h := v.sty.TableHeader
	header := h.Render(padRight("Interface", colInterface)) +
		h.Render(padRight("State", colState)) +
		h.Render(padRight("Reason", colReason)) +
		h.Render(padLeft("Rx", colRx)) +
		h.Render(padLeft("Tx", colTx)) +
		h.Render(padLeft("Err/s", colErr)) +
		" " + h.Render(padRight("Trend", wSpark))

	// Device headers are interleaved with interface rows; the cursor only
	// ever lands on interface rows.
	var lines []string
	cursorLine := 0
	device := ""
	for i, st := range v.rows {
		if st.Device != device {
			device = st.Device
			lines = append(lines, v.sty.GroupHeader.Render(padRight("--- "+device+" ---", v.width)))
		}
		if i == v.cursor {
			cursorLine = len(lines)
		}
		lines = append(lines, v.renderRow(st, wSpark, i == v.cursor))
	}

	visible := max(v.height-1, 1)
	start := 0
	if cursorLine >= visible {
		start = cursorLine - visible + 1
	}
	end := min(start+visible, len(lines))
	if end-start < visible {
		start = max(end-visible, 0)
	}

	return strings.Join(append([]string{header}, lines[start:end]...), "\n")
}

func (v BoardView) renderRow(st engine.InterfaceStatus, wSpark int, selected bool) string {
	rowStyle := v.sty.TableRow
	sel := func(s lipgloss.Style) lipgloss.Style {
		if selected {
			return s.Background(v.theme.Base02)
		}
		return s
	}
	if selected {
		rowStyle = v.sty.TableRowSel
	}

	rx, tx, errRate := "-", "-", "-"
	if st.Rates.Valid {
		rx = components.FormatRate(st.Rates.RxBps)
		tx = components.FormatRate(st.Rates.TxBps)
		errRate = components.FormatErrRate(st.Rates.ErrPerSec)
	}

	k := engine.Key{Device: st.Device, Iface: st.Iface}
	spark := components.Sparkline(v.history.Series(k, Throughput), wSpark)

	return rowStyle.Render(padRight(truncate(st.Iface, colInterface-1), colInterface)) +
		sel(v.sty.State(st.State)).Render(padRight(string(st.State), colState)) +
		rowStyle.Render(padRight(truncate(st.Diagnostics.Reason, colReason-1), colReason)) +
		rowStyle.Render(padLeft(rx, colRx)) +
		rowStyle.Render(padLeft(tx, colTx)) +
		sel(v.sty.ErrRate(st.Rates.ErrPerSec, v.errThreshold)).Render(padLeft(errRate, colErr)) +
		rowStyle.Render(" ") +
		sel(v.sty.SparklineStyle).Render(spark)
}

func (v BoardView) renderEmpty() string {
	msgStyle := lipgloss.NewStyle().
		Foreground(v.theme.Base04).
		Align(lipgloss.Center)

	text := "Waiting for the first collection cycle"
	if v.problemsOnly && len(v.all) > 0 {
		text = fmt.Sprintf("All %d interfaces healthy", len(v.all))
	}
	return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, msgStyle.Render(text))
}

// padRight pads s with spaces on the right to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// padLeft pads s with spaces on the left to the given width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// truncate shortens s to maxLen characters, adding an ellipsis if needed.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
