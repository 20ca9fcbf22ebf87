package tui

import (
	"fmt"
	"slices"
	"strings"
)

// View types accepted by Run.
const (
	ViewInspectSession = "inspect_session"
	ViewStatsSession   = "stats_session"
)

// Run starts the TUI for viewType.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RunInspectTUI(viewType, data)
	}
	return RunStatsTUI(viewType, data)
}

// IsTUISupported reports whether viewType has an interactive view.
// Only the read-only inspect and stats commands do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectSession, ViewStatsSession}
}
