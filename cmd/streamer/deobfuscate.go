package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"epub-streamer/pkg/publication"
	"epub-streamer/pkg/transform"

	"github.com/urfave/cli/v2"
)

var deobfuscateCommand = &cli.Command{
	Name:  "deobfuscate",
	Usage: "undo (or apply) IDPF font obfuscation offline",
	UsageText: "streamer deobfuscate --identifier ID --in FILE --out FILE\n" +
		"   streamer deobfuscate --epub BOOK.epub --out-dir DIR",
	Description: `Masking is an XOR with a key derived from the publication identifier,
so running a resource through twice restores it. With --epub, every resource
declared with an obfuscation algorithm the streamer knows is written to
--out-dir in clear, keeping its path inside the container.`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "identifier", Aliases: []string{"i"}, Usage: "publication identifier `ID`"},
		&cli.StringFlag{Name: "in", Usage: "input resource `FILE`"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output `FILE`"},
		&cli.StringFlag{Name: "epub", Usage: "EPUB `FILE` to extract obfuscated resources from"},
		&cli.StringFlag{Name: "out-dir", Usage: "output `DIR` for --epub", Value: "."},
	},
	Action: deobfuscateCmd,
}

func deobfuscateCmd(c *cli.Context) error {
	if epub := c.String("epub"); epub != "" {
		n, err := extractEPUB(c.Context, transform.DefaultRegistry(), epub, c.String("out-dir"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		fmt.Fprintf(c.App.Writer, "%d resource(s) written to %s\n", n, c.String("out-dir"))
		return nil
	}

	if !c.IsSet("identifier") || c.String("in") == "" || c.String("out") == "" {
		return cli.Exit("Error: --identifier, --in and --out are required without --epub.", 1)
	}
	if err := deobfuscateFile(c.Context, c.String("identifier"), c.String("in"), c.String("out")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

// deobfuscateFile runs the IDPF transform over a standalone resource file.
func deobfuscateFile(ctx context.Context, identifier, in, out string) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()
	fi, err := src.Stat()
	if err != nil {
		return err
	}

	pub := &publication.Publication{Metadata: publication.Metadata{Identifier: identifier}}
	link := &publication.Link{
		Href:       filepath.Base(in),
		Properties: publication.Properties{Encrypted: &publication.Encrypted{Algorithm: transform.AlgorithmIDPF}},
	}
	sal, err := transform.NewObfIDPFTransform().TransformStream(ctx, pub, link, src, fi.Size(), -1, -1)
	if err != nil {
		return err
	}
	defer sal.Stream.Close()
	return writeFile(out, sal.Stream)
}

// extractEPUB writes every transformable resource of the EPUB at name
// under outDir and returns how many were written.
func extractEPUB(ctx context.Context, reg *transform.Registry, name, outDir string) (int, error) {
	pkg, err := publication.OpenEPUB(name)
	if err != nil {
		return 0, err
	}
	defer pkg.Close()

	pub := pkg.Publication
	written := 0
	for _, link := range pub.Links {
		if _, ok := reg.Find(pub, link); !ok {
			continue
		}
		rc, size, err := pkg.Open(link.Href)
		if err != nil {
			return written, err
		}
		sal, _, err := reg.Apply(ctx, pub, link, rc, size, -1, -1)
		if err != nil {
			return written, fmt.Errorf("%s: %w", link.Href, err)
		}
		err = writeFile(filepath.Join(outDir, filepath.FromSlash(link.Href)), sal.Stream)
		sal.Stream.Close()
		if err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeFile(name string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
