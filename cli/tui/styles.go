// Package tui provides Bubble Tea views for the fragstream CLI.
//
// TUI rules:
//   - opt-in only (--tui)
//   - read-only commands only (inspect, stats)
//   - same payloads as json/yaml/table output
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/fragstream/types"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#3B82F6")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// AckStyle colors an ack type or entry kind.
func AckStyle(kind string) lipgloss.Style {
	switch types.AckEventType(kind) {
	case types.AckEventPersisted:
		return SuccessStyle
	case types.AckEventBuffering, types.AckEventReceived:
		return WarningStyle
	case types.AckEventError:
		return ErrorStyle
	}
	if kind == "decode_error" {
		return ErrorStyle
	}
	return ValueStyle
}
