package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/reader"
	"github.com/pithecene-io/fragstream/cli/render"
)

// inspectWireCommand decodes a body captured with `put --capture`.
func inspectWireCommand() *cli.Command {
	return &cli.Command{
		Name:      "wire",
		Usage:     "Decode a captured upload body chunk by chunk",
		ArgsUsage: "<capture>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectWireAction,
	}
}

func inspectWireAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for inspect wire", exitUsage)
	}
	if c.NArg() < 1 {
		return cli.Exit("capture path required", exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	resp, err := reader.GetReader().InspectWire(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	if r.Format() == render.FormatTable {
		return r.Render(resp.Rows)
	}
	return r.Render(resp)
}
