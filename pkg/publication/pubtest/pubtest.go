// Package pubtest builds small EPUB containers for tests.
package pubtest

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// OPFDir is the container directory holding the package document.
const OPFDir = "OEBPS"

type Resource struct {
	// Href is relative to OPFDir.
	Href      string
	MediaType string
	Data      []byte
	// Algorithm, when set, is declared in META-INF/encryption.xml.
	Algorithm string
}

type Book struct {
	Identifier string
	Title      string
	Resources  []Resource
}

// Build returns the zipped EPUB container for b.
func Build(b Book) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, err
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return nil, err
	}

	container := `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + OPFDir + `/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	if err := writeEntry(zw, "META-INF/container.xml", []byte(container)); err != nil {
		return nil, err
	}

	var items, encrypted strings.Builder
	for i, r := range b.Resources {
		fmt.Fprintf(&items, "    <item id=\"r%d\" href=\"%s\" media-type=\"%s\"/>\n",
			i, html.EscapeString(r.Href), html.EscapeString(r.MediaType))
		if r.Algorithm != "" {
			fmt.Fprintf(&encrypted, `  <enc:EncryptedData>
    <enc:EncryptionMethod Algorithm="%s"/>
    <enc:CipherData><enc:CipherReference URI="%s/%s"/></enc:CipherData>
  </enc:EncryptedData>
`, html.EscapeString(r.Algorithm), OPFDir, html.EscapeString(r.Href))
		}
		name, err := url.PathUnescape(r.Href)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, OPFDir+"/"+name, r.Data); err != nil {
			return nil, err
		}
	}

	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="other">isbn:0000000000</dc:identifier>
    <dc:identifier id="pub-id">` + html.EscapeString(b.Identifier) + `</dc:identifier>
    <dc:title>` + html.EscapeString(b.Title) + `</dc:title>
  </metadata>
  <manifest>
` + items.String() + `  </manifest>
</package>`
	if err := writeEntry(zw, OPFDir+"/content.opf", []byte(opf)); err != nil {
		return nil, err
	}

	if encrypted.Len() > 0 {
		enc := `<?xml version="1.0"?>
<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container" xmlns:enc="http://www.w3.org/2001/04/xmlenc#">
` + encrypted.String() + `</encryption>`
		if err := writeEntry(zw, "META-INF/encryption.xml", []byte(enc)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile builds b and stores it as dir/id.epub.
func WriteFile(dir, id string, b Book) (string, error) {
	data, err := Build(b)
	if err != nil {
		return "", err
	}
	name := filepath.Join(dir, id+".epub")
	return name, os.WriteFile(name, data, 0o644)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
