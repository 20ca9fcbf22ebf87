package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/fragstream/cli/reader"
)

const timeLayout = "15:04:05.000"

// InspectModel shows a session header and a scrollable entry table.
type InspectModel struct {
	viewType string
	data     *reader.InspectSessionResponse
	table    table.Model
	width    int
	height   int
	quitting bool
	invalid  bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	m := InspectModel{viewType: viewType}
	resp, ok := data.(*reader.InspectSessionResponse)
	if !ok || resp == nil {
		m.invalid = true
		return m
	}
	m.data = resp

	columns := []table.Column{
		{Title: "Seq", Width: 6},
		{Title: "Received", Width: 12},
		{Title: "Kind", Width: 12},
		{Title: "Ack", Width: 10},
		{Title: "Timecode", Width: 12},
		{Title: "Detail", Width: 30},
	}
	rows := make([]table.Row, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		rows = append(rows, entryRow(e))
	}
	m.table = table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+2, 20)),
	)
	return m
}

func entryRow(e reader.EntryRow) table.Row {
	tc := ""
	if e.FragmentTimecode != nil {
		tc = strconv.FormatInt(*e.FragmentTimecode, 10)
	}
	detail := e.Detail
	if detail == "" && e.FragmentNumber != "" {
		detail = "fragment " + e.FragmentNumber
	}
	return table.Row{
		strconv.FormatInt(e.Seq, 10),
		e.ReceivedAt.Format(timeLayout),
		e.Kind,
		e.AckType,
		tc,
		detail,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.invalid && msg.Height > 14 {
			m.table.SetHeight(msg.Height - 14)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.invalid {
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	if m.invalid {
		return fmt.Sprintf("Invalid data type for %s", m.viewType)
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if len(m.data.Entries) == 0 {
		b.WriteString(ValueStyle.Render("(no entries)"))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ scroll • q quit"))
	return b.String()
}

func (m InspectModel) renderHeader() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Journal"))
	b.WriteString("\n")

	rows := [][2]string{{"Path", m.data.Path}}
	if s := m.data.Session; s != nil {
		rows = append(rows,
			[2]string{"Session", s.SessionID},
			[2]string{"Stream", s.Stream},
			[2]string{"Endpoint", s.Endpoint},
			[2]string{"Started", s.StartedAt.Format("2006-01-02 15:04:05")},
		)
	}
	rows = append(rows, [2]string{"Entries", strconv.Itoa(len(m.data.Entries))})

	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(r[0]+":"), ValueStyle.Render(r[1]))
	}
	if m.data.Truncated {
		b.WriteString(WarningStyle.Render("journal ends in a partial record"))
		b.WriteString("\n")
	}
	return BoxStyle.Render(b.String())
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	p := tea.NewProgram(NewInspectModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders the inspect view once without a program.
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 100
	model.height = 30
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
