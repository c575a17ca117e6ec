package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"epub-streamer/pkg/config"
	"epub-streamer/pkg/hosting"
	"epub-streamer/pkg/log"
	"epub-streamer/pkg/publication"
	"epub-streamer/pkg/server"
	"epub-streamer/pkg/transform"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:      "serve",
	Usage:     "serve the publication library over HTTP",
	UsageText: "streamer serve [options]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file `PATH`"},
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen address `ADDR` (listener mode)"},
		&cli.StringFlag{Name: "library", Aliases: []string{"d"}, Usage: "directory `DIR` holding .epub files"},
		&cli.StringFlag{Name: "hosting", Usage: "hosting mode: auto, listener or lambda"},
		&cli.BoolFlag{Name: "compress", Usage: "zstd-encode full responses for clients that accept it"},
		&cli.StringFlag{Name: "log-level", Usage: "log `LEVEL` (debug, info, warn, error)"},
		&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "human-readable console logs"},
		&cli.StringFlag{Name: "log-db", Usage: "also store logs in the SQLite database at `PATH`"},
	},
	Action: serveCmd,
}

func applyServeFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	if c.IsSet("library") {
		cfg.LibraryDir = c.String("library")
	}
	if c.IsSet("hosting") {
		cfg.HostingMode = c.String("hosting")
	}
	if c.IsSet("compress") {
		cfg.CompressResponses = c.Bool("compress")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("pretty") {
		cfg.LogPretty = c.Bool("pretty")
	}
	if c.IsSet("log-db") {
		cfg.LogDB = c.String("log-db")
	}
}

func serveCmd(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load configuration: %v", err), 1)
	}
	applyServeFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := log.Setup(log.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, DBPath: cfg.LogDB}); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize logger: %v", err), 1)
	}
	defer log.Close()
	if cfg.ConfigFile != "" {
		log.Printf("using config file %s", cfg.ConfigFile)
	}

	srv, err := server.New(publication.NewLibrary(cfg.LibraryDir), transform.DefaultRegistry(),
		server.Options{CompressResponses: cfg.CompressResponses})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := hosting.ResolveMode(cfg, os.Getenv)
	log.Info().Str("mode", mode).Str("library", cfg.LibraryDir).Str("version", Version).Msg("starting streamer")
	if err := hosting.Run(ctx, srv.Echo, mode, cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return cli.Exit(err.Error(), 1)
	}
	log.Info().Msg("streamer has been shut down")
	return nil
}
