package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/reader"
	"github.com/pithecene-io/fragstream/cli/render"
	"github.com/pithecene-io/fragstream/cli/tui"
)

// StatsCommand returns the stats command. It summarizes one session
// journal: acks by type, persisted fragments and fragment errors.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize a session journal",
		ArgsUsage: "<journal>",
		Flags:     ReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("journal path required", exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	stats, err := reader.GetReader().StatsSession(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsSession, stats)
	}
	return r.Render(stats)
}
