package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmikhno/groupscan/internal/logging"
)

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, quit := cmd().(tea.QuitMsg)
	return quit
}

func TestQuitKeyOutsideTextInput(t *testing.T) {
	a := New(nil, logging.Discard())
	a.section = sectionResults

	_, cmd := a.Update(keyRune('q'))
	if !isQuit(cmd) {
		t.Error("expected q to quit outside a text input")
	}
}

func TestSearchInputSwallowsQuitKey(t *testing.T) {
	a := New(nil, logging.Discard())
	a.section = sectionResults
	a.searching = true
	a.search.Focus()

	model, cmd := a.Update(keyRune('q'))
	if isQuit(cmd) {
		t.Fatal("typing q into the search box must not quit")
	}
	if got := model.(*App).search.Value(); got != "q" {
		t.Errorf("expected search query %q, got %q", "q", got)
	}
}

func TestParseInputSwallowsQuitKey(t *testing.T) {
	a := New(nil, logging.Discard())

	model, cmd := a.Update(keyRune('q'))
	if isQuit(cmd) {
		t.Fatal("typing q into the parse input must not quit")
	}
	if got := model.(*App).input.Value(); got != "q" {
		t.Errorf("expected input %q, got %q", "q", got)
	}
}
