package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tonhe/nocwatch/internal/engine"
)

type fakeSource struct {
	board    engine.BoardSnapshot
	events   []engine.Transition
	boardErr error
}

func (f *fakeSource) Board(context.Context) (engine.BoardSnapshot, error) {
	return f.board, f.boardErr
}

func (f *fakeSource) Events(_ context.Context, limit int) ([]engine.Transition, error) {
	return f.events[:min(limit, len(f.events))], nil
}

func (f *fakeSource) Stream(ctx context.Context, _ func(engine.Transition)) error {
	<-ctx.Done()
	return ctx.Err()
}

func newFakeSource() *fakeSource {
	now := time.Now()
	up := engine.StateUp
	return &fakeSource{
		board: engine.BoardSnapshot{
			Interfaces: []engine.InterfaceStatus{
				{Device: "core1", Iface: "eth0", State: engine.StateUp, LastPoll: now,
					Rates: engine.Rates{RxBps: 1e6, TxBps: 2e6, Valid: true}},
				{Device: "core1", Iface: "eth1", State: engine.StateDown, LastPoll: now,
					Diagnostics: engine.Diagnostics{Reason: "no carrier"}},
				{Device: "edge1", Iface: "ge-0/0/0", State: engine.StateDegraded, LastPoll: now},
			},
			LastTick: now,
		},
		events: []engine.Transition{
			{ID: "1", Device: "core1", Iface: "eth1", From: &up, To: engine.StateDown,
				Diagnostics: engine.Diagnostics{Reason: "no carrier"}, Timestamp: now.Unix()},
		},
	}
}

func update(t *testing.T, m AppModel, msg tea.Msg) AppModel {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(AppModel)
}

func loaded(t *testing.T, src *fakeSource) AppModel {
	t.Helper()
	m := NewAppModel(src, Options{Endpoint: "127.0.0.1:8080", Version: "test", NoStream: true})
	m = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	return update(t, m, m.fetchCmd()())
}

func TestAppModelRendersBoard(t *testing.T) {
	m := loaded(t, newFakeSource())
	out := m.View()
	for _, want := range []string{"nocwatch", "LIVE", "2 devices", "eth1", "no carrier", "1/3 up", "Recent transitions"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestAppModelFetchFailure(t *testing.T) {
	src := newFakeSource()
	src.boardErr = errors.New("connection refused")
	m := loaded(t, src)

	out := m.View()
	if !strings.Contains(out, "OFFLINE") || !strings.Contains(out, "connection refused") {
		t.Errorf("expected offline status with error, got %q", out)
	}
}

func TestAppModelDetailNavigation(t *testing.T) {
	m := loaded(t, newFakeSource())
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateDetail {
		t.Fatal("expected detail view after enter")
	}
	if out := m.View(); !strings.Contains(out, "Last poll:") || !strings.Contains(out, "eth1") {
		t.Errorf("unexpected detail view: %q", out)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != StateBoard {
		t.Error("expected esc to return to the board")
	}
}

func TestAppModelStreamPush(t *testing.T) {
	m := loaded(t, newFakeSource())
	m = update(t, m, transitionMsg{t: engine.Transition{ID: "2", Device: "edge1", Iface: "ge-0/0/0",
		To: engine.StateDegraded, Diagnostics: engine.Diagnostics{Reason: "speed_mismatch 100 != expected 1000"}}})

	if !strings.Contains(m.View(), "speed_mismatch") {
		t.Error("expected streamed transition in the events pane")
	}
}

func TestAppModelThemeCycle(t *testing.T) {
	m := loaded(t, newFakeSource())
	before := m.theme.Slug
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	if m.theme.Slug == before {
		t.Errorf("expected theme to change from %s", before)
	}
}

func TestAppModelQuitCancels(t *testing.T) {
	m := loaded(t, newFakeSource())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if next.(AppModel).ctx.Err() == nil {
		t.Error("expected context cancelled on quit")
	}
}
