package appdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathCreatesDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	appDirCache = ""
	defer func() { appDirCache = "" }()

	p, err := Path("streamer.db")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	want := filepath.Join(home, dirName, "streamer.db")
	if p != want {
		t.Fatalf("Expected %s, got %s", want, p)
	}
	if fi, err := os.Stat(filepath.Dir(p)); err != nil || !fi.IsDir() {
		t.Fatalf("Expected app directory to exist: %v", err)
	}
}
