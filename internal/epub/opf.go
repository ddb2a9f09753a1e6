package epub

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Titles       []string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Dates        []string `xml:"http://purl.org/dc/elements/1.1/ date"`
	Languages    []string `xml:"http://purl.org/dc/elements/1.1/ language"`
	Descriptions []string `xml:"http://purl.org/dc/elements/1.1/ description"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

func parseOPF(data []byte) (*opfPackage, error) {
	data = preprocessEntities(stripBOM(data))

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse package document: %w: %w", ErrInvalidPackage, err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// first returns the first non-blank value, trimmed.
func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (m opfMetadata) metadata() Metadata {
	return Metadata{
		Title:       first(m.Titles),
		Creator:     first(m.Creators),
		Date:        first(m.Dates),
		Language:    first(m.Languages),
		Description: first(m.Descriptions),
	}
}

// buildSpine maps itemrefs onto manifest entries. An itemref with no
// manifest item keeps its idref as the href so the entry is not lost.
func buildSpine(pkg *opfPackage) []SpineItem {
	byID := make(map[string]opfItem, len(pkg.Manifest.Items))
	for _, it := range pkg.Manifest.Items {
		byID[it.ID] = it
	}

	items := make([]SpineItem, 0, len(pkg.Spine.ItemRefs))
	for _, ref := range pkg.Spine.ItemRefs {
		si := SpineItem{
			IDRef:  ref.IDRef,
			Href:   ref.IDRef,
			Linear: ref.Linear != "no",
		}
		if it, ok := byID[ref.IDRef]; ok {
			si.Href = NormalizeHref(it.Href)
			si.MediaType = it.MediaType
		}
		items = append(items, si)
	}
	return items
}

// encoding/xml knows only the five XML entities, but package documents in
// the wild often carry HTML named ones.
var entityNumeric = map[string]string{
	"nbsp": "&#160;", "mdash": "&#8212;", "ndash": "&#8211;", "hellip": "&#8230;",
	"lsquo": "&#8216;", "rsquo": "&#8217;", "ldquo": "&#8220;", "rdquo": "&#8221;",
	"copy": "&#169;", "reg": "&#174;", "trade": "&#8482;", "bull": "&#8226;",
	"middot": "&#183;", "eacute": "&#233;", "egrave": "&#232;", "ecirc": "&#234;",
	"euml": "&#235;", "aacute": "&#225;", "agrave": "&#224;", "acirc": "&#226;",
	"auml": "&#228;", "iacute": "&#237;", "icirc": "&#238;", "iuml": "&#239;",
	"oacute": "&#243;", "ocirc": "&#244;", "ouml": "&#246;", "uacute": "&#250;",
	"ugrave": "&#249;", "ucirc": "&#251;", "uuml": "&#252;", "ntilde": "&#241;",
	"ccedil": "&#231;", "laquo": "&#171;", "raquo": "&#187;", "deg": "&#176;",
	"sect": "&#167;", "para": "&#182;", "times": "&#215;",
}

var entityPattern = regexp.MustCompile(`(?i)&([a-z]+);`)

func preprocessEntities(data []byte) []byte {
	return entityPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := strings.ToLower(string(match[1 : len(match)-1]))
		if repl, ok := entityNumeric[name]; ok {
			return []byte(repl)
		}
		return match
	})
}
