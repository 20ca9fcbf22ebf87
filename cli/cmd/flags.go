// Package cmd provides CLI commands for the fragstream binary.
package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared output flags. --tui is included
// everywhere so unsupported commands can reject it explicitly.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// parsePairs parses repeated name=value flags.
func parsePairs(flag string, values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --%s %q (want name=value)", flag, v)
		}
		out[name] = value
	}
	return out, nil
}
