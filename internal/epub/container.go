package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

const containerPath = "META-INF/container.xml"

const opfMediaType = "application/oebps-package+xml"

type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// locatePackageDocument returns the archive path of the package document.
// container.xml is preferred; without one the first .opf entry is used.
func (p *Package) locatePackageDocument() (string, error) {
	if f := p.findFile(containerPath); f != nil {
		return parseContainer(f)
	}
	for _, f := range p.zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no package document in archive: %w", ErrInvalidPackage)
}

func parseContainer(f *zip.File) (string, error) {
	data, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("read container.xml: %w", err)
	}

	var c containerXML
	if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
		return "", fmt.Errorf("parse container.xml: %w: %w", ErrInvalidPackage, err)
	}

	var fallback string
	for _, rf := range c.RootFiles {
		full := strings.TrimSpace(rf.FullPath)
		if full == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), opfMediaType) {
			return full, nil
		}
		if fallback == "" {
			fallback = full
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("container.xml has no usable rootfile: %w", ErrInvalidPackage)
	}
	return fallback, nil
}
