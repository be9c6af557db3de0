package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmikhno/groupscan/internal/models"
)

// Settings rows shown in the settings section, in display order.
const (
	settingAutoSave = iota
	settingNotifications
	settingDarkMode
	settingSecure
	settingSessionTimeout
	settingParseAdmins
	settingParseBots
	settingParsePremium
	settingParseRegular
	settingParseNoUsername
	settingDelay
	settingCount
)

func (a *App) toggleSetting(s *models.Settings, o *models.ParseOptions) {
	switch a.settingIdx {
	case settingAutoSave:
		s.AutoSave = !s.AutoSave
	case settingNotifications:
		s.Notifications = !s.Notifications
	case settingDarkMode:
		s.DarkMode = !s.DarkMode
	case settingSecure:
		s.SecureConnection = !s.SecureConnection
	case settingSessionTimeout:
		// Cycle through the supported timeouts.
		switch s.SessionTimeout {
		case 15:
			s.SessionTimeout = 30
		case 30:
			s.SessionTimeout = 60
		default:
			s.SessionTimeout = 15
		}
	case settingParseAdmins:
		o.ParseAdmins = !o.ParseAdmins
	case settingParseBots:
		o.ParseBots = !o.ParseBots
	case settingParsePremium:
		o.ParsePremium = !o.ParsePremium
	case settingParseRegular:
		o.ParseRegular = !o.ParseRegular
	case settingParseNoUsername:
		o.ParseNoUsername = !o.ParseNoUsername
	case settingDelay:
		switch o.Delay {
		case 0.5:
			o.Delay = 1.0
		case 1.0:
			o.Delay = 2.0
		default:
			o.Delay = 0.5
		}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("groupscan"))
	b.WriteString("  ")
	for i, name := range sectionNames {
		if section(i) == a.section {
			b.WriteString(activeTabStyle.Render(name))
		} else {
			b.WriteString(tabStyle.Render(name))
		}
	}
	b.WriteString("\n\n")

	switch a.section {
	case sectionParse:
		b.WriteString(a.viewParse())
	case sectionResults:
		b.WriteString(a.viewResults())
	case sectionStats:
		b.WriteString(a.viewStats())
	case sectionSettings:
		b.WriteString(a.viewSettings())
	}

	if a.message != "" {
		b.WriteString("\n" + itemStyle.Render(a.message))
	}
	b.WriteString("\n" + helpStyle.Render(a.helpLine()))
	return b.String()
}

func (a *App) viewParse() string {
	var b strings.Builder
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n\n")

	task := a.task
	if task == nil {
		b.WriteString(itemStyle.Render("No active task. Press enter to start parsing."))
		return b.String()
	}

	switch task.State {
	case models.TaskStateSubmitting:
		b.WriteString(itemStyle.Render(a.spinner.View() + " submitting " + task.Input))
	case models.TaskStateRunning:
		label := ""
		if task.Estimated {
			label = helpStyle.Render("  (estimated)")
		}
		title := task.Title
		if title == "" {
			title = task.Input
		}
		b.WriteString(itemStyle.Render(a.spinner.View() + " parsing " + title))
		b.WriteString("\n")
		b.WriteString(itemStyle.Render(a.progress.ViewAs(task.Progress/100) + label))
	case models.TaskStateCompleted:
		b.WriteString(okStyle.Render("✓ completed: " + task.Title))
	case models.TaskStateCancelled:
		b.WriteString(warnStyle.Render("✗ cancelled"))
	case models.TaskStateFailed:
		b.WriteString(errStyle.Render("✗ failed: " + task.Error))
	}
	return b.String()
}

func (a *App) viewResults() string {
	var b strings.Builder

	header := fmt.Sprintf("period: %s", periodLabels[a.periodIdx])
	if a.searching || a.search.Value() != "" {
		header = "search: " + a.search.View()
	}
	b.WriteString(itemStyle.Render(header))
	b.WriteString("\n\n")

	if len(a.results) == 0 {
		b.WriteString(itemStyle.Render("no results"))
		return b.String()
	}

	for i, r := range a.results {
		line := fmt.Sprintf("%-32s %6d members  %s",
			truncate(r.Title, 32), r.ItemCount, r.CreatedAt.Local().Format("2006-01-02 15:04"))
		if cov := r.Coverage(); cov > 0 {
			line += fmt.Sprintf("  %.0f%%", cov)
		}
		if i == a.selectedIdx {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) viewStats() string {
	rows := []string{
		fmt.Sprintf("Groups parsed   %d", a.stats.Count),
		fmt.Sprintf("Members total   %d", a.stats.TotalItems),
		fmt.Sprintf("Avg coverage    %d%%", a.stats.AvgCoverage),
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (a *App) viewSettings() string {
	s := a.mgr.Settings()
	o := a.mgr.ParseOptions()

	rows := []struct {
		label string
		value string
	}{
		{"Auto save", onOff(s.AutoSave)},
		{"Notifications", onOff(s.Notifications)},
		{"Dark mode", onOff(s.DarkMode)},
		{"Secure connection", onOff(s.SecureConnection)},
		{"Session timeout", fmt.Sprintf("%d min", s.SessionTimeout)},
		{"Parse admins", onOff(o.ParseAdmins)},
		{"Parse bots", onOff(o.ParseBots)},
		{"Parse premium", onOff(o.ParsePremium)},
		{"Parse regular", onOff(o.ParseRegular)},
		{"Parse no-username", onOff(o.ParseNoUsername)},
		{"Request delay", fmt.Sprintf("%.1fs", o.Delay)},
	}

	var b strings.Builder
	for i, row := range rows {
		line := fmt.Sprintf("%-20s %s", row.label, row.value)
		if i == a.settingIdx {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(itemStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) helpLine() string {
	switch a.section {
	case sectionParse:
		return "enter start · ctrl+v paste · ctrl+x cancel · tab section · q quit"
	case sectionResults:
		return "/ search · f filter · d delete · r refresh · y copy · tab section · q quit"
	case sectionSettings:
		return "enter toggle · R reset · tab section · q quit"
	}
	return "tab section · q quit"
}

func onOff(v bool) string {
	if v {
		return okStyle.Render("on")
	}
	return lipgloss.NewStyle().Foreground(mutedColor).Render("off")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
