package appdir

import (
	"os"
	"path/filepath"
)

const dirName = ".epub-streamer"

var appDirCache string

// AppDir returns the per-user directory holding the streamer's config and
// log database. It falls back to the working directory when no home
// directory is known.
func AppDir() string {
	if appDirCache == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		appDirCache = filepath.Join(home, dirName)
	}
	return appDirCache
}

// Path joins name onto AppDir, creating the directory if needed.
func Path(name string) (string, error) {
	dir := AppDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
