package styles

import (
	"testing"

	"github.com/tonhe/nocwatch/internal/engine"
)

func TestLookup(t *testing.T) {
	theme, ok := Lookup("solarized-dark")
	if !ok {
		t.Fatal("expected solarized-dark to exist")
	}
	if theme.Name != "Solarized Dark" || theme.Slug != "solarized-dark" {
		t.Errorf("unexpected theme %q (%s)", theme.Name, theme.Slug)
	}
	if _, ok := Lookup("nonexistent"); ok {
		t.Error("expected unknown slug to be missing")
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	if got := Resolve("nonexistent"); got.Slug != DefaultSlug {
		t.Errorf("expected default theme, got %s", got.Slug)
	}
	if got := Resolve("dracula"); got.Slug != "dracula" {
		t.Errorf("expected dracula, got %s", got.Slug)
	}
}

func TestSlugsSortedAndComplete(t *testing.T) {
	s := Slugs()
	if len(s) < 20 {
		t.Errorf("expected at least 20 themes, got %d", len(s))
	}
	for i := 1; i < len(s); i++ {
		if s[i-1] >= s[i] {
			t.Fatalf("slugs not sorted at %d: %s >= %s", i, s[i-1], s[i])
		}
	}
	s[0] = "mutated"
	if Slugs()[0] == "mutated" {
		t.Error("expected Slugs to return a copy")
	}
}

func TestNextCyclesEveryTheme(t *testing.T) {
	seen := map[string]bool{}
	slug := DefaultSlug
	for range len(Slugs()) {
		slug = Next(slug).Slug
		seen[slug] = true
	}
	if len(seen) != len(Slugs()) {
		t.Errorf("expected to visit %d themes, visited %d", len(Slugs()), len(seen))
	}
	if slug != DefaultSlug {
		t.Errorf("expected a full cycle to return to %s, got %s", DefaultSlug, slug)
	}
}

func TestStateStyles(t *testing.T) {
	s := NewStyles(DefaultTheme)
	if got := s.State(engine.StateDown).GetForeground(); got != DefaultTheme.Base08 {
		t.Errorf("expected DOWN in red, got %v", got)
	}
	if got := s.State(engine.StateUp).GetForeground(); got != DefaultTheme.Base0B {
		t.Errorf("expected UP in green, got %v", got)
	}
	if got := s.ErrRate(5, 1).GetForeground(); got != DefaultTheme.Base08 {
		t.Errorf("expected high error rate in red, got %v", got)
	}
}
