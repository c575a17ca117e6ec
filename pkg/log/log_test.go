package log

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetupWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "debug", Out: &buf}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Close()

	Info().Str("href", "OEBPS/font.otf").Msg("served")
	if !strings.Contains(buf.String(), `"href":"OEBPS/font.otf"`) {
		t.Fatalf("Expected JSON event, got %q", buf.String())
	}
}

func TestSetupLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup(Options{Level: "warn", Out: &buf}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Close()

	Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected info to be filtered, got %q", buf.String())
	}
}

func TestSetupBadLevel(t *testing.T) {
	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatalf("Expected error for unknown level")
	}
}

func TestStoreNotInitialized(t *testing.T) {
	if _, err := GetLastNLogs(10); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "streamer.db")
	if err := Setup(Options{DBPath: dbPath, Out: io.Discard}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Close()

	Info().Msg("first")
	Warn().Msg("second")
	Info().Msg("third")

	entries, err := GetLastNLogs(2)
	if err != nil {
		t.Fatalf("GetLastNLogs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !strings.Contains(entries[0].LogData, "second") || !strings.Contains(entries[1].LogData, "third") {
		t.Errorf("Expected chronological order, got %v", entries)
	}

	since, err := GetLogsSince(time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("GetLogsSince failed: %v", err)
	}
	if len(since) != 3 {
		t.Errorf("Expected 3 entries since an hour ago, got %d", len(since))
	}

	if err := Setup(Options{DBPath: dbPath}); err == nil {
		t.Errorf("Expected second Setup with a store to fail")
	}
}

func TestGetLastNLogsBounds(t *testing.T) {
	if err := Setup(Options{DBPath: filepath.Join(t.TempDir(), "streamer.db"), Out: io.Discard}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer Close()

	Printf("one %d", 1)
	Error().Msg("two")

	none, err := GetLastNLogs(0)
	if err != nil || len(none) != 0 {
		t.Fatalf("Expected no entries for n=0, got %v (err %v)", none, err)
	}
	all, err := GetLastNLogs(50)
	if err != nil {
		t.Fatalf("GetLastNLogs failed: %v", err)
	}
	if len(all) != 2 || !strings.Contains(all[0].LogData, "one 1") || !strings.Contains(all[1].LogData, "two") {
		t.Errorf("Expected both entries oldest first, got %v", all)
	}
	if all[0].ID >= all[1].ID {
		t.Errorf("Expected ascending ids, got %d then %d", all[0].ID, all[1].ID)
	}
}
