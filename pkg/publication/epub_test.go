package publication_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"epub-streamer/pkg/publication"
	"epub-streamer/pkg/publication/pubtest"
)

const idpfAlgorithm = "http://www.idpf.org/2008/embedding"

func sampleBook() pubtest.Book {
	return pubtest.Book{
		Identifier: "urn:uuid:abc 123",
		Title:      "Sample",
		Resources: []pubtest.Resource{
			{Href: "chapter1.xhtml", MediaType: "application/xhtml+xml", Data: []byte("<html/>")},
			{Href: "fonts/My%20Font.otf", MediaType: "font/otf", Data: []byte("font-bytes"), Algorithm: idpfAlgorithm},
		},
	}
}

func readSample(t *testing.T) *publication.Package {
	t.Helper()
	data, err := pubtest.Build(sampleBook())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	pkg, err := publication.ReadEPUB(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadEPUB failed: %v", err)
	}
	return pkg
}

func TestReadEPUBMetadata(t *testing.T) {
	pkg := readSample(t)
	defer pkg.Close()

	if got := pkg.Publication.Metadata.Identifier; got != "urn:uuid:abc 123" {
		t.Errorf("Expected unique identifier, got %q", got)
	}
	if got := pkg.Publication.Metadata.Title; got != "Sample" {
		t.Errorf("Expected title Sample, got %q", got)
	}
}

func TestReadEPUBLinks(t *testing.T) {
	pkg := readSample(t)
	defer pkg.Close()

	var hrefs []string
	for _, l := range pkg.Publication.Links {
		hrefs = append(hrefs, l.Href)
	}
	want := []string{"OEBPS/chapter1.xhtml", "OEBPS/fonts/My Font.otf"}
	if !reflect.DeepEqual(hrefs, want) {
		t.Fatalf("Expected hrefs %v, got %v", want, hrefs)
	}

	font := pkg.Publication.LinkByHref("OEBPS/fonts/My Font.otf")
	if font == nil {
		t.Fatalf("font link not found")
	}
	if got := font.EncryptionAlgorithm(); got != idpfAlgorithm {
		t.Errorf("Expected algorithm %q, got %q", idpfAlgorithm, got)
	}
	chapter := pkg.Publication.LinkByHref("OEBPS/chapter1.xhtml")
	if chapter.Properties.Encrypted != nil {
		t.Errorf("Expected chapter to be unencrypted")
	}
}

func TestPackageOpen(t *testing.T) {
	pkg := readSample(t)
	defer pkg.Close()

	rc, size, err := pkg.Open("OEBPS/fonts/My Font.otf")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "font-bytes" || size != int64(len(data)) {
		t.Errorf("Unexpected content %q (size %d)", data, size)
	}

	if _, _, err := pkg.Open("OEBPS/missing.css"); !errors.Is(err, publication.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, _, err := pkg.Open("../etc/passwd"); !errors.Is(err, publication.ErrBadHref) {
		t.Errorf("Expected ErrBadHref, got %v", err)
	}
}

func TestReadEPUBRejectsGarbage(t *testing.T) {
	data := []byte("definitely not a zip")
	if _, err := publication.ReadEPUB(bytes.NewReader(data), int64(len(data))); !errors.Is(err, publication.ErrNotEPUB) {
		t.Fatalf("Expected ErrNotEPUB, got %v", err)
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	if _, err := pubtest.WriteFile(dir, "moby", sampleBook()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := pubtest.WriteFile(dir, "alice", sampleBook()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	lib := publication.NewLibrary(dir)
	ids, err := lib.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"alice", "moby"}) {
		t.Fatalf("Expected [alice moby], got %v", ids)
	}

	pkg, err := lib.Open("moby")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer pkg.Close()
	if pkg.Publication.Metadata.Identifier == "" {
		t.Errorf("Expected identifier to be parsed")
	}

	for _, id := range []string{"", "missing", "../moby", ".."} {
		if _, err := lib.Open(id); !errors.Is(err, publication.ErrNotFound) {
			t.Errorf("Open(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}
