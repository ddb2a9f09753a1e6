package book

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultTitle  = "Unknown Title"
	DefaultAuthor = "Unknown Author"
)

// ErrChapterNotFound is returned when a chapter index is outside 0..N-1.
var ErrChapterNotFound = errors.New("chapter not found")

// Document is the extracted structure of one ingested package.
type Document struct {
	ID              string    // Assigned by the store at save time
	Title           string    // Falls back to DefaultTitle
	Author          string    // Falls back to DefaultAuthor
	PublicationDate *string   // nil when the package has no date
	Language        *string   // nil when the package has no language
	Description     *string   // nil when the package has no description
	Chapters        []Chapter // Spine order, fixed at ingestion
	CreatedAt       time.Time
}

// Chapter is one reading-order entry of a Document.
type Chapter struct {
	Index    int    // Position in the owning Document's chapter slice
	Title    string // "Chapter N", 1-based
	Source   string // Package-internal reference from the spine
	Path     string // Archive path that resolved; empty when Resolved is false
	Resolved bool   // False when no candidate path produced readable text
	Text     string // Plain text extracted from Markup
	Markup   string // Decoded source markup
}

// ChapterTitle returns the display title for the chapter at zero-based index i.
func ChapterTitle(i int) string {
	return fmt.Sprintf("Chapter %d", i+1)
}

// Chapter returns the chapter at index i.
func (d *Document) Chapter(i int) (Chapter, error) {
	if i < 0 || i >= len(d.Chapters) {
		return Chapter{}, fmt.Errorf("chapter %d of %d: %w", i, len(d.Chapters), ErrChapterNotFound)
	}
	return d.Chapters[i], nil
}

// Gaps returns the indices of chapters whose content could not be resolved.
func (d *Document) Gaps() []int {
	var gaps []int
	for _, ch := range d.Chapters {
		if !ch.Resolved {
			gaps = append(gaps, ch.Index)
		}
	}
	return gaps
}

// Optional returns a pointer to s, or nil when s is empty.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the value behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
