package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxEntrySize caps the decompressed size of a single archive entry.
const maxEntrySize int64 = 256 << 20

func (p *Package) buildIndex() {
	p.exact = make(map[string]*zip.File, len(p.zr.File))
	p.lower = make(map[string]*zip.File, len(p.zr.File))
	for _, f := range p.zr.File {
		if _, ok := p.exact[f.Name]; !ok {
			p.exact[f.Name] = f
		}
		lower := strings.ToLower(f.Name)
		if _, ok := p.lower[lower]; !ok {
			p.lower[lower] = f
		}
	}
}

// findFile tries an exact match first, then a case-insensitive one.
func (p *Package) findFile(name string) *zip.File {
	if f, ok := p.exact[name]; ok {
		return f
	}
	if f, ok := p.lower[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	return readZipFileLimit(f, maxEntrySize)
}

func readZipFileLimit(f *zip.File, limit int64) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("unsafe entry path %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	// Declared sizes can lie, so read one byte past the limit.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, limit)
	}
	return data, nil
}

func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// NormalizeHref strips any fragment from an href taken from the package
// document and undoes percent-encoding. The result is still relative to the
// package document's directory.
func NormalizeHref(href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return href
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
