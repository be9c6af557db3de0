// Package tui provides the interactive terminal UI for groupscan.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/dmikhno/groupscan/internal/cache"
	"github.com/dmikhno/groupscan/internal/lifecycle"
	"github.com/dmikhno/groupscan/internal/models"
)

var (
	// Colors, adaptive to light and dark terminals
	primaryColor = lipgloss.Color("#0088CC")
	successColor = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	warningColor = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	fgColor      = lipgloss.Color("#F9FAFB")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Background(primaryColor).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	okStyle   = lipgloss.NewStyle().Foreground(successColor)
	warnStyle = lipgloss.NewStyle().Foreground(warningColor)
	errStyle  = lipgloss.NewStyle().Foreground(errorColor)
)

type section int

const (
	sectionParse section = iota
	sectionResults
	sectionStats
	sectionSettings
)

var sectionNames = []string{"Parse", "Results", "Stats", "Settings"}

var periods = []cache.Period{cache.PeriodAll, cache.PeriodToday, cache.PeriodWeek, cache.PeriodMonth}
var periodLabels = []string{"all", "today", "7 days", "30 days"}

const refreshEvery = 200 * time.Millisecond

// App is the main TUI application model. It owns no state of its own:
// every frame is rebuilt from manager, cache and store reads.
type App struct {
	mgr *lifecycle.Manager
	log *logrus.Logger

	section     section
	input       textinput.Model
	search      textinput.Model
	progress    progress.Model
	spinner     spinner.Model
	results     []models.Result
	task        *models.Task
	stats       models.Stats
	selectedIdx int
	settingIdx  int
	periodIdx   int
	searching   bool
	message     string
	messageAt   time.Time
	width       int
	height      int
}

// New creates the TUI application.
func New(mgr *lifecycle.Manager, log *logrus.Logger) *App {
	ti := textinput.New()
	ti.Placeholder = "@group, https://t.me/group or invite link"
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 60

	si := textinput.New()
	si.Placeholder = "search title or filename"
	si.CharLimit = 64
	si.Width = 40

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	pb := progress.New(progress.WithDefaultGradient())

	return &App{
		mgr:      mgr,
		log:      log,
		input:    ti,
		search:   si,
		spinner:  sp,
		progress: pb,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type tickMsg time.Time

type submitDoneMsg struct{ err error }

type refreshDoneMsg struct {
	count int
	err   error
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.reload()
	return tea.Batch(textinput.Blink, a.spinner.Tick, tick())
}

// reload rebuilds the view data from the owning components.
func (a *App) reload() {
	a.task = a.mgr.Active()
	a.results = a.visibleResults()
	a.stats = a.mgr.Snapshot().Stats
	if a.selectedIdx >= len(a.results) {
		a.selectedIdx = len(a.results) - 1
	}
	if a.selectedIdx < 0 {
		a.selectedIdx = 0
	}
}

func (a *App) visibleResults() []models.Result {
	if q := strings.TrimSpace(a.search.Value()); q != "" {
		return a.mgr.SearchResults(q)
	}
	return a.mgr.FilterResults(periods[a.periodIdx])
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		a.reload()
		if a.message != "" && time.Since(a.messageAt) > 3*time.Second {
			a.message = ""
		}
		return a, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case submitDoneMsg:
		if msg.err != nil {
			a.toast(errStyle.Render(msg.err.Error()))
		} else {
			a.toast(okStyle.Render("parse started"))
		}
		return a, nil

	case refreshDoneMsg:
		if msg.err != nil {
			a.toast(errStyle.Render("refresh failed: " + msg.err.Error()))
		} else {
			a.toast(okStyle.Render(fmt.Sprintf("merged %d results", msg.count)))
		}
		return a, nil

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.progress.Width = min(msg.Width-12, 60)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		typing := a.searching || (a.section == sectionParse && a.input.Focused())
		if msg.String() == "q" && typing {
			break // typed text, not a quit
		}
		return a, tea.Quit

	case "tab":
		a.section = (a.section + 1) % section(len(sectionNames))
		a.searching = false
		a.search.Blur()
		if a.section == sectionParse {
			a.input.Focus()
		} else {
			a.input.Blur()
		}
		return a, nil
	}

	switch a.section {
	case sectionParse:
		return a.handleParseKey(msg)
	case sectionResults:
		return a.handleResultsKey(msg)
	case sectionSettings:
		return a.handleSettingsKey(msg)
	}
	return a, nil
}

func (a *App) handleParseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		ref := strings.TrimSpace(a.input.Value())
		if ref == "" {
			a.toast(warnStyle.Render("enter a group reference"))
			return a, nil
		}
		return a, func() tea.Msg {
			_, err := a.mgr.Submit(ref, a.mgr.ParseOptions())
			return submitDoneMsg{err}
		}

	case "ctrl+v":
		text, err := clipboard.ReadAll()
		if err != nil {
			a.toast(warnStyle.Render("clipboard unavailable"))
			return a, nil
		}
		a.input.SetValue(strings.TrimSpace(text))
		a.toast(okStyle.Render("pasted from clipboard"))
		return a, nil

	case "ctrl+x":
		if task := a.mgr.Active(); task != nil {
			if err := a.mgr.Cancel(task.ID); err != nil {
				a.toast(errStyle.Render(err.Error()))
			} else {
				a.toast(warnStyle.Render("parse cancelled"))
			}
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.searching {
		switch msg.String() {
		case "enter", "esc":
			a.searching = false
			a.search.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "/":
		a.searching = true
		a.search.Focus()
		return a, textinput.Blink

	case "f":
		a.periodIdx = (a.periodIdx + 1) % len(periods)
		a.search.SetValue("")
		return a, nil

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
		return a, nil

	case "down", "j":
		if a.selectedIdx < len(a.results)-1 {
			a.selectedIdx++
		}
		return a, nil

	case "d":
		if a.selectedIdx < len(a.results) {
			a.mgr.RemoveResult(a.results[a.selectedIdx].ID)
			a.toast(okStyle.Render("result deleted"))
		}
		return a, nil

	case "r":
		return a, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			n, err := a.mgr.Refresh(ctx)
			return refreshDoneMsg{n, err}
		}

	case "y":
		if a.selectedIdx < len(a.results) {
			r := a.results[a.selectedIdx]
			text := fmt.Sprintf("%s: %d members", r.Title, r.ItemCount)
			if err := clipboard.WriteAll(text); err != nil {
				a.toast(warnStyle.Render("clipboard unavailable"))
			} else {
				a.toast(okStyle.Render("copied to clipboard"))
			}
		}
		return a, nil
	}
	return a, nil
}

func (a *App) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	settings := a.mgr.Settings()
	opts := a.mgr.ParseOptions()

	switch msg.String() {
	case "up", "k":
		if a.settingIdx > 0 {
			a.settingIdx--
		}
	case "down", "j":
		if a.settingIdx < settingCount-1 {
			a.settingIdx++
		}
	case "enter", " ":
		a.toggleSetting(&settings, &opts)
		a.mgr.SetSettings(settings)
		a.mgr.SetParseOptions(opts)
	case "R":
		a.mgr.ResetSettings()
		a.mgr.ResetParseOptions()
		a.toast(okStyle.Render("settings reset to defaults"))
	}
	return a, nil
}

func (a *App) toast(msg string) {
	a.message = msg
	a.messageAt = time.Now()
}

func min(x, y int) int {
	if x < y {
		return x
	}
	return y
}
