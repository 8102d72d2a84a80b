package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shayc/otto/pkg/models"
)

const (
	defaultRefresh = 2 * time.Second
	historyRows    = 6
)

// StatusSource supplies heartbeat snapshots for the watch dashboard.
// Satisfied by the memory database.
type StatusSource interface {
	LatestHeartbeat() (*models.Snapshot, error)
	RecentHeartbeats(limit int) ([]models.Snapshot, error)
}

// StatusMsg carries a fresh snapshot and its trailing history.
type StatusMsg struct {
	Snapshot *models.Snapshot
	History  []models.Snapshot
}

// StatusErrMsg is sent when a refresh could not read the database.
type StatusErrMsg struct {
	Err error
}

// refreshMsg fires the next poll.
type refreshMsg struct{}

// StatusApp is the bubbletea model for the status watch dashboard. It
// is read-only: the daemon writes heartbeats, the dashboard polls them.
type StatusApp struct {
	source  StatusSource
	refresh time.Duration
	spinner spinner.Model

	snap      *models.Snapshot
	history   []models.Snapshot
	err       error
	fetchedAt time.Time

	width    int
	quitting bool

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	dimStyle     lipgloss.Style
	sectionStyle lipgloss.Style
	errorStyle   lipgloss.Style
	barFull      lipgloss.Style
	barEmpty     lipgloss.Style
	runningStyle lipgloss.Style
	parkedStyle  lipgloss.Style
}

// NewStatusApp creates the dashboard model. A refresh of zero uses the
// default poll interval.
func NewStatusApp(source StatusSource, refresh time.Duration) *StatusApp {
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &StatusApp{
		source:  source,
		refresh: refresh,
		spinner: sp,
		width:   80,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		sectionStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		barFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		barEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		parkedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *StatusApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetch(), a.scheduleRefresh())
}

// Update implements tea.Model.
func (a *StatusApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "r":
			return a, a.fetch()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case refreshMsg:
		return a, tea.Batch(a.fetch(), a.scheduleRefresh())

	case StatusMsg:
		a.snap = msg.Snapshot
		a.history = msg.History
		a.err = nil
		a.fetchedAt = time.Now()

	case StatusErrMsg:
		a.err = msg.Err
	}

	return a, nil
}

// fetch reads the latest heartbeat and recent history.
func (a *StatusApp) fetch() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.source.LatestHeartbeat()
		if err != nil {
			return StatusErrMsg{Err: err}
		}
		history, err := a.source.RecentHeartbeats(historyRows)
		if err != nil {
			return StatusErrMsg{Err: err}
		}
		return StatusMsg{Snapshot: snap, History: history}
	}
}

func (a *StatusApp) scheduleRefresh() tea.Cmd {
	return tea.Tick(a.refresh, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// View implements tea.Model.
func (a *StatusApp) View() string {
	if a.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(a.titleStyle.Render("otto status"))
	if a.snap != nil {
		b.WriteString("  ")
		b.WriteString(profileBadge(a.snap.Profile))
	}
	b.WriteString("\n\n")

	if a.err != nil {
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("refresh failed: %v", a.err)))
		b.WriteString("\n\n")
	}

	if a.snap == nil {
		b.WriteString("  ")
		b.WriteString(a.spinner.View())
		b.WriteString(a.dimStyle.Render(" waiting for the first heartbeat..."))
		b.WriteString("\n\n")
		b.WriteString(a.footer())
		return b.String()
	}

	b.WriteString(a.renderSnapshot())
	b.WriteString("\n")
	b.WriteString(a.renderAgents())
	b.WriteString("\n")
	b.WriteString(a.renderHistory())
	b.WriteString("\n")
	b.WriteString(a.footer())
	return b.String()
}

func (a *StatusApp) renderSnapshot() string {
	snap := a.snap
	var b strings.Builder

	b.WriteString(a.labelStyle.Render("Uptime:"))
	b.WriteString(a.valueStyle.Render(formatUptime(snap.Uptime)))
	b.WriteString("\n")

	b.WriteString(a.labelStyle.Render("Power:"))
	b.WriteString(a.renderBattery(snap.BatteryPercent, snap.OnAC))
	b.WriteString("\n")

	b.WriteString(a.labelStyle.Render("Runtime Left:"))
	b.WriteString(a.valueStyle.Render(formatRuntime(snap.EstimatedRuntimeHours)))
	b.WriteString("\n")

	memStr := fmt.Sprintf("%d hot records, %d MB heap",
		snap.HotRecords, snap.MemoryFootprintBytes>>20)
	b.WriteString(a.labelStyle.Render("Memory:"))
	b.WriteString(a.valueStyle.Render(memStr))
	b.WriteString("\n")

	tokenStr := fmt.Sprintf("%d tokens ($%.4f)", snap.TokensUsed, snap.CostUSD)
	b.WriteString(a.labelStyle.Render("Remote Usage:"))
	b.WriteString(a.valueStyle.Render(tokenStr))
	b.WriteString("\n")

	b.WriteString(a.labelStyle.Render("Metrics:"))
	b.WriteString(a.valueStyle.Render(fmt.Sprintf("%d collected", snap.MetricsCollected)))
	b.WriteString("\n")

	age := time.Since(snap.TakenAt).Round(time.Second)
	beatStr := fmt.Sprintf("%s (%s ago)", snap.TakenAt.Local().Format("15:04:05"), age)
	b.WriteString(a.labelStyle.Render("Last Beat:"))
	b.WriteString(a.dimStyle.Render(beatStr))
	b.WriteString("\n")

	return b.String()
}

// renderBattery shows a charge bar, or the supply state when the
// percentage is unknown.
func (a *StatusApp) renderBattery(percent int, onAC bool) string {
	if percent < 0 {
		if onAC {
			return a.valueStyle.Render("AC power")
		}
		return a.dimStyle.Render("unknown")
	}

	const width = 20
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	bar := a.barFull.Render(strings.Repeat("█", filled)) +
		a.barEmpty.Render(strings.Repeat("░", width-filled))

	suffix := "battery"
	if onAC {
		suffix = "charging"
	}
	return fmt.Sprintf("%s %d%% %s", bar, percent, a.dimStyle.Render(suffix))
}

// renderAgents lists every agent kind with its state under the active
// profile. The snapshot carries only the running count, so kinds are
// marked by roster eligibility.
func (a *StatusApp) renderAgents() string {
	var b strings.Builder

	title := fmt.Sprintf("Agents (%d running)", a.snap.RunningAgents)
	b.WriteString(a.sectionStyle.Render(title))
	b.WriteString("\n")

	for _, kind := range models.AllAgentKinds() {
		if kind.EligibleUnder(a.snap.Profile) {
			b.WriteString("  ")
			b.WriteString(a.runningStyle.Render("●"))
			b.WriteString(fmt.Sprintf(" %-10s", strings.ToLower(string(kind))))
			b.WriteString(a.dimStyle.Render("active roster"))
		} else {
			b.WriteString("  ")
			b.WriteString(a.parkedStyle.Render("○"))
			b.WriteString(fmt.Sprintf(" %-10s", strings.ToLower(string(kind))))
			b.WriteString(a.dimStyle.Render(fmt.Sprintf("parked until %s", kind.MinimumProfile())))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderHistory shows the trailing heartbeats, newest first.
func (a *StatusApp) renderHistory() string {
	if len(a.history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(a.sectionStyle.Render("Recent Beats"))
	b.WriteString("\n")

	for _, snap := range a.history {
		ts := a.dimStyle.Render(snap.TakenAt.Local().Format("15:04:05"))
		battery := "ac"
		if snap.BatteryPercent >= 0 {
			battery = fmt.Sprintf("%d%%", snap.BatteryPercent)
		}
		line := fmt.Sprintf("  %s  %-12s %-5s %d agents  $%.4f",
			ts, snap.Profile, battery, snap.RunningAgents, snap.CostUSD)
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func (a *StatusApp) footer() string {
	parts := []string{"q quit", "r refresh"}
	if !a.fetchedAt.IsZero() {
		parts = append(parts, "updated "+a.fetchedAt.Format("15:04:05"))
	}
	return a.dimStyle.Render(strings.Join(parts, " · "))
}

// profileBadge renders the profile name on its signal color.
func profileBadge(p models.Profile) string {
	color := "240"
	switch p {
	case models.ProfilePerformance:
		color = "34"
	case models.ProfileBalanced:
		color = "39"
	case models.ProfileEco:
		color = "214"
	case models.ProfileCritical:
		color = "196"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color(color)).
		Bold(true).
		Padding(0, 1).
		Render(string(p))
}

// formatUptime renders a duration as days, hours, and minutes.
func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// formatRuntime renders the drain estimate, or n/a when unknown.
func formatRuntime(hours float64) string {
	if hours < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1fh", hours)
}

// NewStatusProgram creates a Bubbletea program for the watch dashboard.
func NewStatusProgram(source StatusSource, refresh time.Duration) (*tea.Program, *StatusApp) {
	app := NewStatusApp(source, refresh)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
