package ingest

import (
	"bytes"
	"log/slog"
	"path"
	"unicode/utf8"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/parser"
	"golang.org/x/net/html/charset"
)

// ResolveFunc returns the bytes stored at an archive path, or false when no
// such entry exists.
type ResolveFunc func(path string) ([]byte, bool)

// CandidateRule turns a spine reference into one archive path to try.
// pkgDir is the package document's directory, "" at the archive root.
type CandidateRule struct {
	Name string
	Path func(id, pkgDir string) string
}

// DefaultCandidates is the lookup order used for spine references. Packages
// disagree on where content lives, so the common layouts are tried in turn.
var DefaultCandidates = []CandidateRule{
	{Name: "verbatim", Path: func(id, _ string) string { return id }},
	{Name: "package-relative", Path: func(id, dir string) string {
		if dir == "" {
			return id
		}
		return path.Join(dir, id)
	}},
	{Name: "text", Path: func(id, _ string) string { return "text/" + id }},
	{Name: "oebps", Path: func(id, _ string) string { return "OEBPS/" + id }},
	{Name: "oebps-text", Path: func(id, _ string) string { return "OEBPS/Text/" + id }},
}

// Resolver maps spine references to chapters.
type Resolver struct {
	rules []CandidateRule
	log   *slog.Logger
}

// NewResolver returns a Resolver using rules, or DefaultCandidates when none
// are given.
func NewResolver(log *slog.Logger, rules ...CandidateRule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultCandidates
	}
	return &Resolver{rules: rules, log: log}
}

// Resolve returns one chapter per id, in order. A chapter whose candidates
// all fail is still returned, with Resolved false and empty text.
func (r *Resolver) Resolve(ids []string, pkgDir string, lookup ResolveFunc) []book.Chapter {
	chapters := make([]book.Chapter, len(ids))
	for i, id := range ids {
		ch := book.Chapter{
			Index:  i,
			Title:  book.ChapterTitle(i),
			Source: id,
		}

		if p, markup, ok := r.resolveOne(id, pkgDir, lookup); ok {
			ch.Path = p
			ch.Resolved = true
			ch.Markup = markup
			ch.Text = parser.ExtractText(markup)
		} else {
			r.log.Warn("chapter content unresolved",
				"index", i,
				"source", id,
				"candidates", len(r.candidates(id, pkgDir)),
			)
		}
		chapters[i] = ch
	}
	return chapters
}

func (r *Resolver) resolveOne(id, pkgDir string, lookup ResolveFunc) (string, string, bool) {
	for _, p := range r.candidates(id, pkgDir) {
		raw, ok := lookup(p)
		if !ok {
			continue
		}
		if markup, ok := decode(raw); ok {
			return p, markup, true
		}
		r.log.Debug("candidate not decodable", "path", p)
	}
	return "", "", false
}

// candidates applies every rule to id, dropping empty and repeated paths.
func (r *Resolver) candidates(id, pkgDir string) []string {
	seen := make(map[string]bool, len(r.rules))
	var out []string
	for _, rule := range r.rules {
		p := rule.Path(id, pkgDir)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode converts raw chapter bytes to UTF-8 markup. Bytes that are already
// valid UTF-8 are used as-is; otherwise the declared or sniffed charset is
// applied. Content claiming UTF-8 that is not, or that contains NUL bytes,
// is rejected.
func decode(raw []byte) (string, bool) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", false
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}

	enc, name, _ := charset.DetermineEncoding(raw, "text/html")
	if name == "utf-8" {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}
