package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/reader"
	"github.com/pithecene-io/fragstream/cli/render"
	"github.com/pithecene-io/fragstream/cli/tui"
)

// InspectCommand returns the inspect command. It shows every entry of
// one session journal; `inspect wire` decodes a captured upload body.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the entries of a session journal",
		ArgsUsage: "<journal>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectAction,
		Subcommands: []*cli.Command{
			inspectWireCommand(),
		},
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("journal path required", exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	resp, err := reader.GetReader().InspectSession(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSession, resp)
	}
	// Tables show the rows; the session header only fits structured output.
	if r.Format() == render.FormatTable {
		return r.Render(resp.Entries)
	}
	return r.Render(resp)
}
