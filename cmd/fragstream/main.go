// Package main provides the fragstream CLI entrypoint.
//
// Usage:
//
//	fragstream <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: usage or configuration error
//   - 2: connection failure (connect, TLS, non-2xx response)
//   - 3: stream failure after the connection was established
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/cmd"
	"github.com/pithecene-io/fragstream/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "fragstream",
		Usage:          "Stream media fragments to an ingestion endpoint and track their acks",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.PutCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler prints the error, if any, and exits with its code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus extracts the exit code and the message worth printing.
// cli.Exit("", N) reports "exit status N", which is not printed.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
