package publication

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const epubExt = ".epub"

// Library serves EPUB files found in a single directory. The publication id
// is the file name without its extension.
type Library struct {
	Dir string
}

func NewLibrary(dir string) *Library {
	return &Library{Dir: dir}
}

// List returns the ids of all publications in the library, sorted.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("publication: read library %s: %w", l.Dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), epubExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(ids)
	return ids, nil
}

// Open opens the publication with the given id. Packages are not cached,
// the caller closes what it opens.
func (l *Library) Open(id string) (*Package, error) {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: publication %q", ErrNotFound, id)
	}
	name := filepath.Join(l.Dir, id+epubExt)
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: publication %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("publication: stat %s: %w", name, err)
	}
	return OpenEPUB(name)
}
