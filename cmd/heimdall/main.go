// Command heimdall is the thin CLI entrypoint spec.md §1 scopes out of
// the core ("CLI argument parsing, output formatting beyond the
// formats ... , and network fetch of a contract's bytecode from an
// RPC endpoint are out of scope for the library"), built here as an
// ambient collaborator over the core packages, modeled on
// cmd/geth's app/Command registration shape (urfave/cli/v2).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bifrost-sh/heimdall/internal/hlog"
)

var app = cli.NewApp()

func init() {
	app.Name = "heimdall"
	app.Usage = "EVM bytecode forensic decompiler"
	app.Commands = []*cli.Command{
		disasmCommand,
		cfgCommand,
		snapshotCommand,
		decompileCommand,
	}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Usage: "enable debug logging"},
	}
	app.Before = func(c *cli.Context) error {
		level := hlog.LevelInfo
		if c.Bool("verbose") {
			level = hlog.LevelDebug
		}
		hlog.SetDefault(hlog.NewLogger(hlog.NewTerminalHandler(os.Stderr, level)))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
