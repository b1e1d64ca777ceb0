package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/kiln/metrics"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_passes":
		content = m.renderStatsPasses()
	case "stats_fetches":
		content = m.renderStatsFetches()
	case "stats_cache":
		content = m.renderStatsCache()
	case "stats_revalidations":
		content = m.renderStatsRevalidations()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) snapshot() (*metrics.Snapshot, bool) {
	snap, ok := m.data.(*metrics.Snapshot)
	return snap, ok && snap != nil
}

func (m StatsModel) renderStatsPasses() string {
	snap, ok := m.snapshot()
	if !ok {
		return "Invalid data type for stats_passes"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Render Pass Statistics"))
	b.WriteString("\n\n")

	// Create stat boxes
	boxes := []string{
		m.renderStatBox("Started", snap.PassesStarted, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Static", snap.PassesStatic, successColor),
		m.renderStatBox("Dynamic", snap.PassesDynamic, warningColor),
		m.renderStatBox("Failed", snap.PassesFailed, errorColor),
	}

	// Join boxes horizontally
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if snap.DynamicDowngrades > 0 {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Downgrades:"),
			WarningStyle.Render(fmt.Sprintf("%d", snap.DynamicDowngrades))))
	}

	return b.String()
}

func (m StatsModel) renderStatsFetches() string {
	snap, ok := m.snapshot()
	if !ok {
		return "Invalid data type for stats_fetches"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Fetch Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Total", snap.FetchesTotal, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Coalesced", snap.FetchesCoalesced, highlightColor),
		m.renderStatBox("Cache Hits", snap.CacheHits, successColor),
		m.renderStatBox("Cache Misses", snap.CacheMisses, warningColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	return b.String()
}

func (m StatsModel) renderStatsCache() string {
	snap, ok := m.snapshot()
	if !ok {
		return "Invalid data type for stats_cache"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Incremental Cache Statistics"))
	b.WriteString("\n\n")

	backendTitle := lipgloss.NewStyle().
		Bold(true).
		Foreground(highlightColor).
		Render(fmt.Sprintf("Backend: %s", snap.CacheBackend))

	b.WriteString(backendTitle)
	b.WriteString("\n")

	boxes := []string{
		m.renderStatBox("Hits", snap.CacheHits, successColor),
		m.renderStatBox("Misses", snap.CacheMisses, warningColor),
		m.renderStatBox("Bypassed", snap.CacheBypassed, mutedColor),
		m.renderStatBox("Writes", snap.CacheWriteSuccess, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Write Errors", snap.CacheWriteFailure, errorColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	return b.String()
}

func (m StatsModel) renderStatsRevalidations() string {
	snap, ok := m.snapshot()
	if !ok {
		return "Invalid data type for stats_revalidations"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Revalidation Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Queued", snap.RevalidationsQueued, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Completed", snap.RevalidationsCompleted, successColor),
		m.renderStatBox("Failed", snap.RevalidationsFailed, errorColor),
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
