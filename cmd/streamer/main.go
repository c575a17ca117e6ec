package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "streamer",
		Usage:   "serve EPUB publications, undoing IDPF font obfuscation on the fly",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Commands: []*cli.Command{
			serveCommand,
			deobfuscateCommand,
			logsCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
