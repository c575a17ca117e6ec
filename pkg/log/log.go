// Package log provides the streamer's zerolog logger. Events go to stderr
// and, when a database path is configured, to an SQLite table that the
// `logs` command can query.
package log

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	pkgLogger = zerolog.Nop()
	store     *sqliteWriter
	mu        sync.RWMutex

	// fixed width so stored times sort as strings
	zerologTimeFieldFormat = "2006-01-02T15:04:05.000000000Z07:00"

	ErrNotInitialized = errors.New("log: log store not initialized, call log.Setup() with a DBPath first")
)

// Options selects where and how events are written.
type Options struct {
	Level  string
	Pretty bool
	// DBPath enables the SQLite sink when not empty.
	DBPath string
	// Out defaults to os.Stderr.
	Out io.Writer
}

type sqliteWriter struct {
	db   *sql.DB
	stmt *sql.Stmt
	mu   sync.Mutex
}

func newSQLiteWriter(dbPath string) (*sqliteWriter, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode=wal&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("log: open sqlite db %s: %w", dbPath, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("log: ping sqlite db %s: %w", dbPath, err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
			log_data TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_logs_json_time ON logs (json_extract(log_data, '$.time'));`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("log: prepare schema: %w", err)
		}
	}

	stmt, err := db.Prepare(`INSERT INTO logs (log_data) VALUES (?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("log: prepare insert: %w", err)
	}
	return &sqliteWriter{db: db, stmt: stmt}, nil
}

func (w *sqliteWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.stmt.Exec(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *sqliteWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.stmt.Close(), w.db.Close())
}

// Setup replaces the package logger. It may be called again after Close.
func Setup(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		level = l
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	mu.Lock()
	defer mu.Unlock()
	if store != nil {
		return errors.New("log: already initialized with a log store")
	}

	if opts.DBPath != "" {
		w, err := newSQLiteWriter(opts.DBPath)
		if err != nil {
			return err
		}
		store = w
		out = zerolog.MultiLevelWriter(out, w)
	}

	zerolog.TimeFieldFormat = zerologTimeFieldFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	pkgLogger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return nil
}

// Close flushes and detaches the SQLite sink, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	pkgLogger = zerolog.Nop()
	if store == nil {
		return nil
	}
	w := store
	store = nil
	if err := w.close(); err != nil {
		return fmt.Errorf("log: close store: %w", err)
	}
	return nil
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := pkgLogger
	return &l
}

func Debug() *zerolog.Event { return current().Debug() }
func Info() *zerolog.Event  { return current().Info() }
func Warn() *zerolog.Event  { return current().Warn() }
func Error() *zerolog.Event { return current().Error() }

// Printf sends an info event. Arguments are handled in the manner of fmt.Printf.
func Printf(format string, v ...any) {
	current().Info().CallerSkipFrame(1).Msgf(format, v...)
}

func Fatalf(format string, v ...any) {
	current().Fatal().Msgf(format, v...)
}
