package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"epub-streamer/pkg/appdir"
	"epub-streamer/pkg/log"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// timeFormats are tried in order when a time spec is not a duration.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeSpec accepts either a duration back from now ("1h", "30m") or
// an absolute timestamp.
func parseTimeSpec(spec string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d), nil
	}
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, spec); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time specification %q: use a duration (e.g. '1h', '30m') or a timestamp (e.g. '2023-10-27T15:04:05Z')", spec)
}

var logsCommand = &cli.Command{
	Name:      "logs",
	Usage:     "print entries from the streamer's SQLite log database",
	UsageText: "streamer logs [--dbfile PATH] [--last|--since|--between] [mode options]",
	Description: `Reads the database written by 'streamer serve --log-db PATH'.
Without a mode flag the most recent --count entries are printed.`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "dbfile", Aliases: []string{"f"}, Usage: "SQLite log database `PATH` (default: streamer.db in the app directory)"},
		&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "human-readable output instead of raw JSON lines"},
		&cli.BoolFlag{Name: "last", Usage: "Mode: most recent N entries (default)"},
		&cli.BoolFlag{Name: "since", Usage: "Mode: entries since --start"},
		&cli.BoolFlag{Name: "between", Usage: "Mode: entries between --start and --end"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "entries for --last `NUMBER`", Value: 100},
		&cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "start `TIME_SPEC` (e.g. '1h', '2023-10-27T10:00:00Z')"},
		&cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "end `TIME_SPEC`"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "max entries for --since/--between `NUMBER`", Value: 1000},
	},
	Action: logsCmd,
}

func logsCmd(c *cli.Context) error {
	modes := 0
	for _, m := range []string{"last", "since", "between"} {
		if c.Bool(m) {
			modes++
		}
	}
	if modes > 1 {
		return cli.Exit("Error: only one of --last, --since, --between can be given.", 1)
	}

	dbFile := c.String("dbfile")
	if dbFile == "" {
		p, err := appdir.Path("streamer.db")
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		dbFile = p
	}
	if _, err := os.Stat(dbFile); err != nil {
		return cli.Exit(fmt.Sprintf("Error: database file not found at '%s'", dbFile), 1)
	}
	if err := log.Setup(log.Options{DBPath: dbFile, Out: io.Discard}); err != nil {
		return cli.Exit(fmt.Sprintf("Error opening log database: %v", err), 1)
	}
	defer log.Close()

	now := time.Now()
	var (
		results []log.LogEntry
		err     error
	)
	switch {
	case c.Bool("since"):
		if !c.IsSet("start") {
			return cli.Exit("Error: --start is required for --since.", 1)
		}
		start, perr := parseTimeSpec(c.String("start"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", perr), 1)
		}
		results, err = log.GetLogsSince(start, c.Int("limit"))
	case c.Bool("between"):
		if !c.IsSet("start") || !c.IsSet("end") {
			return cli.Exit("Error: --start and --end are required for --between.", 1)
		}
		start, perr := parseTimeSpec(c.String("start"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing start time: %v", perr), 1)
		}
		end, perr := parseTimeSpec(c.String("end"), now)
		if perr != nil {
			return cli.Exit(fmt.Sprintf("Error parsing end time: %v", perr), 1)
		}
		results, err = log.GetLogsBetween(start, end, c.Int("limit"))
	default:
		if c.Int("count") <= 0 {
			return cli.Exit("Error: --count must be a positive number.", 1)
		}
		results, err = log.GetLastNLogs(c.Int("count"))
	}
	if err != nil {
		if errors.Is(err, log.ErrNotInitialized) {
			return cli.Exit("Internal error: log database handle unavailable.", 2)
		}
		return cli.Exit(fmt.Sprintf("Error retrieving logs: %v", err), 1)
	}

	if len(results) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "No log entries found matching the criteria.")
		return nil
	}
	return printEntries(c.App.Writer, results, c.Bool("pretty"))
}

func printEntries(w io.Writer, entries []log.LogEntry, pretty bool) error {
	if !pretty {
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, e.LogData); err != nil {
				return err
			}
		}
		return nil
	}
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	for _, e := range entries {
		if _, err := cw.Write([]byte(e.LogData)); err != nil {
			fmt.Fprintln(w, e.LogData)
		}
	}
	return nil
}
