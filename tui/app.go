package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/store"
	"github.com/tonhe/nocwatch/tui/components"
	"github.com/tonhe/nocwatch/tui/keys"
	"github.com/tonhe/nocwatch/tui/styles"
	"github.com/tonhe/nocwatch/tui/views"
)

// DefaultRefresh is how often the board is re-fetched.
const DefaultRefresh = 2 * time.Second

const fetchTimeout = 5 * time.Second

// Source is where the dashboard reads collector state from. *api.Client
// satisfies it.
type Source interface {
	Board(ctx context.Context) (engine.BoardSnapshot, error)
	Events(ctx context.Context, limit int) ([]engine.Transition, error)
	Stream(ctx context.Context, fn func(engine.Transition)) error
}

// Options tunes the dashboard.
type Options struct {
	Endpoint     string
	Refresh      time.Duration
	Theme        string
	ErrThreshold float64
	Version      string
	EventLimit   int
	// NoStream disables the live transition feed; the events pane is then
	// only refreshed by polling.
	NoStream bool
}

// AppState is the screen currently shown.
type AppState int

const (
	StateBoard AppState = iota
	StateDetail
)

type tickMsg struct{}

type dataMsg struct {
	board  engine.BoardSnapshot
	events []engine.Transition
	err    error
}

type transitionMsg struct {
	t engine.Transition
}

// streamLostMsg reports that the transition stream dropped and will be
// redialled.
type streamLostMsg struct {
	err error
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	src  Source
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	feed   chan tea.Msg

	state      AppState
	theme      styles.Theme
	history    *views.History
	board      views.BoardView
	events     views.EventsView
	detail     views.DetailView
	help       views.HelpView
	showEvents bool

	last   engine.BoardSnapshot
	live   bool
	errMsg string

	width  int
	height int
}

// NewAppModel creates the dashboard model for src.
func NewAppModel(src Source, opts Options) AppModel {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.ErrThreshold <= 0 {
		opts.ErrThreshold = engine.DefaultThresholds().ErrPerSec
	}
	opts.EventLimit = store.ClampLimit(opts.EventLimit)

	theme := styles.Resolve(opts.Theme)

	ctx, cancel := context.WithCancel(context.Background())
	history := views.NewHistory(views.DefaultHistory)
	return AppModel{
		src:        src,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		feed:       make(chan tea.Msg, 64),
		state:      StateBoard,
		theme:      theme,
		history:    history,
		board:      views.NewBoardView(theme, history, opts.ErrThreshold),
		events:     views.NewEventsView(theme, opts.EventLimit),
		detail:     views.NewDetailView(theme, history),
		help:       views.NewHelpView(theme),
		showEvents: true,
	}
}

func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchCmd(), tickCmd(m.opts.Refresh)}
	if !m.opts.NoStream {
		go m.runStream()
		cmds = append(cmds, m.waitFeed())
	}
	return tea.Batch(cmds...)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m AppModel) fetchCmd() tea.Cmd {
	ctx, src, limit := m.ctx, m.src, m.opts.EventLimit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		board, err := src.Board(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		events, err := src.Events(ctx, limit)
		return dataMsg{board: board, events: events, err: err}
	}
}

func (m AppModel) waitFeed() tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		return <-feed
	}
}

// runStream keeps a live transition stream open until the model quits,
// reconnecting with exponential backoff.
func (m AppModel) runStream() {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	send := func(msg tea.Msg) {
		select {
		case m.feed <- msg:
		case <-m.ctx.Done():
		}
	}

	for m.ctx.Err() == nil {
		err := m.src.Stream(m.ctx, func(t engine.Transition) {
			b.Reset()
			send(transitionMsg{t: t})
		})
		if m.ctx.Err() != nil {
			return
		}
		send(streamLostMsg{err: err})

		select {
		case <-time.After(b.NextBackOff()):
		case <-m.ctx.Done():
			return
		}
	}
}

// Update handles messages and dispatches to the active view.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd(m.opts.Refresh))

	case dataMsg:
		if msg.err != nil {
			m.live = false
			m.errMsg = fmt.Sprintf("fetch failed: %v", msg.err)
			return m, nil
		}
		m.live = true
		m.errMsg = ""
		m.last = msg.board
		m.history.Record(msg.board)
		m.board.SetBoard(msg.board)
		m.events.SetEvents(msg.events)
		if m.state == StateDetail && !m.detail.Refresh(msg.board) {
			m.state = StateBoard
		}
		return m, nil

	case transitionMsg:
		m.events.Push(msg.t)
		return m, m.waitFeed()

	case streamLostMsg:
		if m.errMsg == "" && msg.err != nil {
			m.errMsg = fmt.Sprintf("stream lost: %v", msg.err)
		}
		return m, m.waitFeed()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := keys.DefaultKeyMap
	if key.Matches(msg, km.Quit) {
		m.cancel()
		return m, tea.Quit
	}
	if m.help.IsVisible() {
		if key.Matches(msg, km.Help) || key.Matches(msg, km.Escape) {
			m.help.Toggle()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, km.Help):
		m.help.Toggle()
		return m, nil
	case key.Matches(msg, km.Refresh):
		return m, m.fetchCmd()
	case key.Matches(msg, km.Theme):
		m.nextTheme()
		return m, nil
	}

	switch m.state {
	case StateBoard:
		switch {
		case key.Matches(msg, km.Enter):
			if st, ok := m.board.Selected(); ok {
				m.detail.SetInterface(st)
				m.state = StateDetail
			}
			return m, nil
		case key.Matches(msg, km.Events):
			m.showEvents = !m.showEvents
			m.layout()
			return m, nil
		}
		var cmd tea.Cmd
		m.board, cmd = m.board.Update(msg)
		return m, cmd

	case StateDetail:
		var (
			cmd  tea.Cmd
			back bool
		)
		m.detail, cmd, back = m.detail.Update(msg)
		if back {
			m.state = StateBoard
		}
		return m, cmd
	}
	return m, nil
}

func (m *AppModel) nextTheme() {
	t := styles.Next(m.theme.Slug)
	m.theme = t
	m.board.SetTheme(t)
	m.events.SetTheme(t)
	m.detail.SetTheme(t)
	m.help.SetTheme(t)
}

// bodyHeight is the space between the 1-line header and 2-line status bar.
func (m AppModel) bodyHeight() int {
	return max(m.height-3, 1)
}

func (m AppModel) eventsHeight() int {
	if !m.showEvents {
		return 0
	}
	return min(max(m.bodyHeight()/3, 4), 12)
}

func (m *AppModel) layout() {
	body := m.bodyHeight()
	ev := m.eventsHeight()
	m.board.SetSize(m.width, max(body-ev, 1))
	m.events.SetSize(m.width, ev)
	m.detail.SetSize(m.width, body)
	m.help.SetSize(m.width, body)
}

func (m AppModel) health() components.Health {
	var h components.Health
	for _, st := range m.last.Interfaces {
		switch st.State {
		case engine.StateUp:
			h.Up++
		case engine.StateDown:
			h.Down++
		case engine.StateDegraded:
			h.Degraded++
		case engine.StateAdminDown:
			h.AdminDown++
		}
	}
	return h
}

func (m AppModel) deviceCount() int {
	seen := make(map[string]struct{})
	for _, st := range m.last.Interfaces {
		seen[st.Device] = struct{}{}
	}
	return len(seen)
}

// View renders the full application UI by composing header, body, and status.
func (m AppModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := components.RenderHeader(m.theme, m.opts.Endpoint, m.live, m.deviceCount(), m.width, m.opts.Version)

	var body string
	switch {
	case m.help.IsVisible():
		body = m.help.View()
	case m.state == StateDetail:
		body = m.detail.View()
	case m.showEvents:
		body = lipgloss.JoinVertical(lipgloss.Left, m.board.View(), m.events.View())
	default:
		body = m.board.View()
	}

	statusBar := components.RenderStatusBar(m.theme, m.opts.Refresh, m.last.LastTick, m.health(), m.errMsg, m.width)

	bodyStyle := lipgloss.NewStyle().
		Width(m.width).
		Height(m.bodyHeight()).
		Background(m.theme.Base00).
		Foreground(m.theme.Base05)

	return lipgloss.JoinVertical(lipgloss.Left, header, bodyStyle.Render(body), statusBar)
}
