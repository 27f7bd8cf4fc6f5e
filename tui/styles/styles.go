package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tonhe/nocwatch/internal/engine"
)

// Styles holds all themed lipgloss styles for the application.
type Styles struct {
	// Header / Footer
	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	HeaderStatus lipgloss.Style
	Footer       lipgloss.Style
	FooterKey    lipgloss.Style
	FooterDesc   lipgloss.Style

	// Table
	TableHeader  lipgloss.Style
	TableRow     lipgloss.Style
	TableRowSel  lipgloss.Style
	TableCellDim lipgloss.Style

	// Interface states
	StateUp        lipgloss.Style
	StateDown      lipgloss.Style
	StateDegraded  lipgloss.Style
	StateAdminDown lipgloss.Style

	// Error rate relative to the alert threshold
	ErrNone lipgloss.Style
	ErrSome lipgloss.Style
	ErrHigh lipgloss.Style

	SparklineStyle lipgloss.Style

	// Device group headers and the events pane
	GroupHeader lipgloss.Style
	PaneTitle   lipgloss.Style
	EventTime   lipgloss.Style

	// Modal / overlay
	ModalBorder lipgloss.Style
	ModalTitle  lipgloss.Style
}

// NewStyles creates a new Styles instance from a theme.
func NewStyles(theme Theme) *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(theme.Base05).
			Background(theme.Base01).
			Bold(true).
			Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().
			Foreground(theme.Base0D).
			Bold(true),
		HeaderStatus: lipgloss.NewStyle().
			Foreground(theme.Base0B),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Base04).
			Background(theme.Base01).
			Padding(0, 1),
		FooterKey: lipgloss.NewStyle().
			Foreground(theme.Base0D).
			Bold(true),
		FooterDesc: lipgloss.NewStyle().
			Foreground(theme.Base04),

		TableHeader: lipgloss.NewStyle().
			Foreground(theme.Base0D).
			Bold(true),
		TableRow: lipgloss.NewStyle().
			Foreground(theme.Base05),
		TableRowSel: lipgloss.NewStyle().
			Foreground(theme.Base05).
			Background(theme.Base02),
		TableCellDim: lipgloss.NewStyle().
			Foreground(theme.Base03),

		StateUp: lipgloss.NewStyle().
			Foreground(theme.Base0B),
		StateDown: lipgloss.NewStyle().
			Foreground(theme.Base08).
			Bold(true),
		StateDegraded: lipgloss.NewStyle().
			Foreground(theme.Base0A),
		StateAdminDown: lipgloss.NewStyle().
			Foreground(theme.Base03),

		ErrNone: lipgloss.NewStyle().
			Foreground(theme.Base04),
		ErrSome: lipgloss.NewStyle().
			Foreground(theme.Base0A),
		ErrHigh: lipgloss.NewStyle().
			Foreground(theme.Base08),

		SparklineStyle: lipgloss.NewStyle().
			Foreground(theme.Base0C),

		GroupHeader: lipgloss.NewStyle().
			Foreground(theme.Base0E).
			Bold(true),
		PaneTitle: lipgloss.NewStyle().
			Foreground(theme.Base0D).
			Bold(true),
		EventTime: lipgloss.NewStyle().
			Foreground(theme.Base04),

		ModalBorder: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Base0D).
			BorderBackground(theme.Base00).
			Background(theme.Base00).
			Padding(1, 2),
		ModalTitle: lipgloss.NewStyle().
			Foreground(theme.Base0D).
			Bold(true),
	}
}

// State returns the style for an interface state.
func (s *Styles) State(state engine.State) lipgloss.Style {
	switch state {
	case engine.StateUp:
		return s.StateUp
	case engine.StateDown:
		return s.StateDown
	case engine.StateDegraded:
		return s.StateDegraded
	default:
		return s.StateAdminDown
	}
}

// ErrRate returns the style for an error rate given the alert threshold.
func (s *Styles) ErrRate(rate, threshold float64) lipgloss.Style {
	switch {
	case rate <= 0:
		return s.ErrNone
	case threshold > 0 && rate > threshold:
		return s.ErrHigh
	default:
		return s.ErrSome
	}
}
