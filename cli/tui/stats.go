package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/fragstream/cli/reader"
)

// maxListedErrors caps the fragment error list in the stats view.
const maxListedErrors = 10

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
	return StatsModel{viewType: viewType, data: data}
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
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
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

	data, ok := m.data.(*reader.SessionStats)
	if !ok || data == nil {
		return fmt.Sprintf("Invalid data type for %s", m.viewType)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Statistics"))
	b.WriteString("\n")
	if data.Session != nil {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Session:"), ValueStyle.Render(data.Session.SessionID))
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Stream:"), ValueStyle.Render(data.Session.Stream))
	}
	fmt.Fprintf(&b, "%s %s\n\n", LabelStyle.Render("Ack span:"), ValueStyle.Render(data.Span.String()))

	boxes := []string{
		m.renderStatBox("Acks", data.Acks, highlightColor),
		m.renderStatBox("Persisted", data.PersistedFragments, successColor),
		m.renderStatBox("Errors", len(data.Errors), errorColor),
		m.renderStatBox("Undecodable", data.DecodeErrors, warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(m.renderByType(data.AcksByType))

	if len(data.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Fragment Errors"))
		b.WriteString("\n")
		for i, fe := range data.Errors {
			if i == maxListedErrors {
				fmt.Fprintf(&b, "… %d more\n", len(data.Errors)-maxListedErrors)
				break
			}
			fmt.Fprintf(&b, "%s %s\n",
				LabelStyle.Render("t="+strconv.FormatInt(fe.FragmentTimecode, 10)),
				ErrorStyle.Render("code "+strconv.Itoa(fe.ErrorCode)))
		}
	}

	if data.Truncated {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("journal ends in a partial record"))
	}

	return b.String() + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}

func (m StatsModel) renderByType(byType map[string]int64) string {
	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s %s\n",
			LabelStyle.Render(name+":"),
			AckStyle(name).Render(strconv.FormatInt(byType[name], 10)))
	}
	if b.Len() == 0 {
		return ValueStyle.Render("(no acks)") + "\n"
	}
	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(strconv.Itoa(value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	p := tea.NewProgram(NewStatsModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders the stats view once without a program.
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
