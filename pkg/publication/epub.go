package publication

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	containerPath  = "META-INF/container.xml"
	encryptionPath = "META-INF/encryption.xml"
)

var (
	ErrNotEPUB   = errors.New("publication: not an EPUB container")
	ErrNotFound  = errors.New("publication: resource not found")
	ErrBadHref   = errors.New("publication: invalid resource path")
	errNoRootOPF = errors.New("publication: container.xml declares no rootfile")
)

// Package is an opened EPUB container together with its parsed model.
type Package struct {
	Publication *Publication

	files  map[string]*zip.File
	closer io.Closer
}

type xmlContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type xmlPackage struct {
	UniqueIdentifier string `xml:"unique-identifier,attr"`
	Identifiers      []struct {
		ID    string `xml:"id,attr"`
		Value string `xml:",chardata"`
	} `xml:"metadata>identifier"`
	Titles []string `xml:"metadata>title"`
	Items  []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
}

type xmlEncryption struct {
	Data []struct {
		Method struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
		Reference struct {
			URI string `xml:"URI,attr"`
		} `xml:"CipherData>CipherReference"`
	} `xml:"EncryptedData"`
}

// OpenEPUB opens the EPUB file at name. The caller must Close the package.
func OpenEPUB(name string) (*Package, error) {
	rc, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotEPUB, name, err)
	}
	pkg, err := newPackage(&rc.Reader)
	if err != nil {
		rc.Close()
		return nil, err
	}
	pkg.closer = rc
	return pkg, nil
}

// ReadEPUB parses an EPUB container held in r.
func ReadEPUB(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEPUB, err)
	}
	return newPackage(zr)
}

func newPackage(zr *zip.Reader) (*Package, error) {
	p := &Package{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		p.files[f.Name] = f
	}

	var container xmlContainer
	if err := p.decodeXML(containerPath, &container); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEPUB, err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: %w", ErrNotEPUB, errNoRootOPF)
	}
	opfPath := container.Rootfiles[0].FullPath

	var opf xmlPackage
	if err := p.decodeXML(opfPath, &opf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEPUB, err)
	}

	pub := &Publication{}
	for _, id := range opf.Identifiers {
		if id.ID != "" && id.ID == opf.UniqueIdentifier {
			pub.Metadata.Identifier = id.Value
			break
		}
	}
	if pub.Metadata.Identifier == "" && len(opf.Identifiers) > 0 {
		pub.Metadata.Identifier = opf.Identifiers[0].Value
	}
	if len(opf.Titles) > 0 {
		pub.Metadata.Title = strings.TrimSpace(opf.Titles[0])
	}

	opfDir := path.Dir(opfPath)
	for _, item := range opf.Items {
		href, err := resolveHref(opfDir, item.Href)
		if err != nil {
			continue
		}
		pub.Links = append(pub.Links, &Link{Href: href, MediaType: item.MediaType})
	}

	if _, ok := p.files[encryptionPath]; ok {
		var enc xmlEncryption
		if err := p.decodeXML(encryptionPath, &enc); err != nil {
			return nil, fmt.Errorf("publication: parse %s: %w", encryptionPath, err)
		}
		for _, d := range enc.Data {
			href, err := resolveHref("", d.Reference.URI)
			if err != nil || d.Method.Algorithm == "" {
				continue
			}
			link := pub.LinkByHref(href)
			if link == nil {
				link = &Link{Href: href}
				pub.Links = append(pub.Links, link)
			}
			link.Properties.Encrypted = &Encrypted{Algorithm: d.Method.Algorithm}
		}
	}

	p.Publication = pub
	return p, nil
}

// resolveHref turns an href relative to base into a container path.
func resolveHref(base, href string) (string, error) {
	u, err := url.PathUnescape(href)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrBadHref, href, err)
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	clean := path.Clean(path.Join(base, u))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: %q", ErrBadHref, href)
	}
	return clean, nil
}

func (p *Package) decodeXML(name string, v any) error {
	f, ok := p.files[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("publication: open %s: %w", name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("publication: decode %s: %w", name, err)
	}
	return nil
}

// Open returns the raw, still-obfuscated content of the entry at href along
// with its uncompressed size.
func (p *Package) Open(href string) (io.ReadCloser, int64, error) {
	name, err := resolveHref("", href)
	if err != nil {
		return nil, 0, err
	}
	f, ok := p.files[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("publication: open %s: %w", name, err)
	}
	return rc, int64(f.UncompressedSize64), nil
}

// Close releases the underlying file, if any.
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}
