// Package epub reads the parts of an EPUB archive needed for chapter
// extraction: the package document's metadata, the spine, and raw entries.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
)

// Metadata holds the first non-empty Dublin Core value of each field, or ""
// when the package document does not carry it.
type Metadata struct {
	Title       string
	Creator     string
	Date        string
	Language    string
	Description string
}

// SpineItem is one reading-order entry of the package.
type SpineItem struct {
	IDRef     string
	Href      string // Relative to the package document's directory
	MediaType string
	Linear    bool
}

// Package is an opened EPUB archive. It is read-only after Open and safe
// for concurrent reads.
type Package struct {
	zr    *zip.Reader
	exact map[string]*zip.File
	lower map[string]*zip.File

	OPFPath  string
	OPFDir   string // "" when the package document sits at the archive root
	Version  string
	Metadata Metadata
	Spine    []SpineItem
}

// Open parses an in-memory EPUB. It fails with ErrInvalidPackage when the
// bytes are not a readable package and ErrNoSpine when the spine is empty.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w: %w", ErrInvalidPackage, err)
	}

	p := &Package{zr: zr}
	p.buildIndex()

	opfPath, err := p.locatePackageDocument()
	if err != nil {
		return nil, err
	}
	f := p.findFile(opfPath)
	if f == nil {
		return nil, fmt.Errorf("package document %s missing: %w", opfPath, ErrInvalidPackage)
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil, fmt.Errorf("read package document: %w: %w", ErrInvalidPackage, err)
	}
	pkg, err := parseOPF(raw)
	if err != nil {
		return nil, err
	}

	p.OPFPath = f.Name
	if dir := path.Dir(f.Name); dir != "." {
		p.OPFDir = dir
	}
	p.Version = pkg.Version
	p.Metadata = pkg.Metadata.metadata()
	p.Spine = buildSpine(pkg)
	if len(p.Spine) == 0 {
		return nil, ErrNoSpine
	}
	return p, nil
}

// ReadFile returns the contents of an archive entry. Lookup falls back to a
// case-insensitive match.
func (p *Package) ReadFile(name string) ([]byte, error) {
	if !isSafePath(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	f := p.findFile(path.Clean(name))
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrFileNotFound)
	}
	return readZipFile(f)
}

// Lookup adapts ReadFile to a found/not-found result.
func (p *Package) Lookup(name string) ([]byte, bool) {
	data, err := p.ReadFile(name)
	if err != nil {
		return nil, false
	}
	return data, true
}
