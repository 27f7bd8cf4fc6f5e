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

const infoPanelHeight = 9

// DetailView shows one interface: its classification at the top and Rx, Tx
// and error-rate charts underneath.
type DetailView struct {
	theme   styles.Theme
	sty     *styles.Styles
	history *History
	status  *engine.InterfaceStatus
	width   int
	height  int
}

func NewDetailView(theme styles.Theme, history *History) DetailView {
	return DetailView{
		theme:   theme,
		sty:     styles.NewStyles(theme),
		history: history,
	}
}

// SetTheme restyles the view.
func (v *DetailView) SetTheme(theme styles.Theme) {
	v.theme = theme
	v.sty = styles.NewStyles(theme)
}

// SetInterface changes the interface shown.
func (v *DetailView) SetInterface(st engine.InterfaceStatus) {
	v.status = &st
}

// Refresh picks up the latest status of the shown interface from board.
// It returns false when the interface is no longer on the board.
func (v *DetailView) Refresh(board engine.BoardSnapshot) bool {
	if v.status == nil {
		return false
	}
	for _, st := range board.Interfaces {
		if st.Device == v.status.Device && st.Iface == v.status.Iface {
			v.status = &st
			return true
		}
	}
	return false
}

// SetSize updates the available dimensions for the view.
func (v *DetailView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Update handles key messages for the detail view. The third return value
// indicates whether the user wants to go back.
func (v DetailView) Update(msg tea.Msg) (DetailView, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, keys.DefaultKeyMap.Escape) {
		return v, nil, true
	}
	return v, nil, false
}

func (v DetailView) View() string {
	if v.status == nil {
		msg := lipgloss.NewStyle().
			Foreground(v.theme.Base04).
			Align(lipgloss.Center).
			Render("No interface selected")
		return lipgloss.Place(v.width, v.height, lipgloss.Center, lipgloss.Center, msg)
	}

	chartHeight := max(v.height-infoPanelHeight-2, 6)
	chartWidth := max((v.width-6)/3, 15)

	k := engine.Key{Device: v.status.Device, Iface: v.status.Iface}
	rx := lipgloss.NewStyle().Foreground(v.theme.Base0B).
		Render(components.RenderChart(v.history.Series(k, Rx), chartWidth, chartHeight, "Rx", components.FormatRate))
	tx := lipgloss.NewStyle().Foreground(v.theme.Base0C).
		Render(components.RenderChart(v.history.Series(k, Tx), chartWidth, chartHeight, "Tx", components.FormatRate))
	errs := lipgloss.NewStyle().Foreground(v.theme.Base08).
		Render(components.RenderChart(v.history.Series(k, Err), chartWidth, chartHeight, "Errors/s", components.FormatErrRate))

	sep := lipgloss.NewStyle().
		Foreground(v.theme.Base03).
		Render(strings.TrimSuffix(strings.Repeat(" | \n", chartHeight), "\n"))
	charts := lipgloss.JoinHorizontal(lipgloss.Top, rx, sep, tx, sep, errs)

	return lipgloss.JoinVertical(lipgloss.Left, v.renderInfoPanel(), "", charts, v.renderHelp())
}

func (v DetailView) renderInfoPanel() string {
	st := v.status
	labelStyle := lipgloss.NewStyle().Foreground(v.theme.Base04).Width(16)
	valueStyle := lipgloss.NewStyle().Foreground(v.theme.Base05)
	highlightStyle := lipgloss.NewStyle().Foreground(v.theme.Base0D).Bold(true)

	row := func(label string, value string) string {
		return fmt.Sprintf("  %s%s", labelStyle.Render(label), value)
	}

	rates := "waiting for second sample"
	if st.Rates.Valid {
		rates = fmt.Sprintf("rx %s  tx %s  err %s/s",
			components.FormatRate(st.Rates.RxBps),
			components.FormatRate(st.Rates.TxBps),
			components.FormatErrRate(st.Rates.ErrPerSec))
	}
	polled := "never"
	if !st.LastPoll.IsZero() {
		polled = st.LastPoll.Local().Format("2006-01-02 15:04:05")
	}

	rows := []string{
		"",
		row("Device:", highlightStyle.Render(st.Device)),
		row("Interface:", highlightStyle.Render(st.Iface)),
		row("State:", v.sty.State(st.State).Render(string(st.State))),
		row("Reason:", valueStyle.Render(st.Diagnostics.String())),
		row("Speed:", valueStyle.Render(components.FormatSpeed(st.SpeedMbps))),
		row("Rates:", valueStyle.Render(rates)),
		row("Last poll:", valueStyle.Render(polled)),
	}
	return strings.Join(rows, "\n")
}

func (v DetailView) renderHelp() string {
	helpStyle := lipgloss.NewStyle().Foreground(v.theme.Base04)
	keyStyle := lipgloss.NewStyle().Foreground(v.theme.Base0D).Bold(true)
	return helpStyle.Render(fmt.Sprintf("  %s to go back", keyStyle.Render("[esc]")))
}
