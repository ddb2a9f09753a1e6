// Package store persists ingested documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/rs/xid"
)

// SchemaVersion is the version written into every Record.
const SchemaVersion = 1

var (
	// ErrNotFound means no document exists under the given ID.
	ErrNotFound = errors.New("document not found")

	// ErrUnsupportedSchema means a stored record was written by an
	// incompatible version.
	ErrUnsupportedSchema = errors.New("unsupported record schema")
)

// Store is a long-lived handle to document persistence. Implementations are
// safe for concurrent use.
type Store interface {
	// Save assigns a new ID and creation time to doc and persists it.
	Save(ctx context.Context, doc *book.Document) (string, error)
	Get(ctx context.Context, id string) (*book.Document, error)
	Chapter(ctx context.Context, id string, index int) (book.Chapter, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Summary is the listing view of a stored document.
type Summary struct {
	ID        string    `json:"document_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Chapters  int       `json:"chapter_count"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a unique, time-ordered document ID.
func NewID() string {
	return xid.New().String()
}

// Record is the persisted shape of a Document.
type Record struct {
	SchemaVersion   int             `json:"schema_version"`
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Author          string          `json:"author"`
	PublicationDate *string         `json:"publication_date,omitempty"`
	Language        *string         `json:"language,omitempty"`
	Description     *string         `json:"description,omitempty"`
	ChapterCount    int             `json:"chapter_count"`
	Chapters        []ChapterRecord `json:"chapters,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ChapterRecord is the persisted shape of a Chapter.
type ChapterRecord struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Path     string `json:"path,omitempty"`
	Resolved bool   `json:"resolved"`
	Text     string `json:"text"`
	Markup   string `json:"markup,omitempty"`
}

// NewRecord converts doc into its persisted form.
func NewRecord(doc *book.Document) Record {
	r := Record{
		SchemaVersion:   SchemaVersion,
		ID:              doc.ID,
		Title:           doc.Title,
		Author:          doc.Author,
		PublicationDate: doc.PublicationDate,
		Language:        doc.Language,
		Description:     doc.Description,
		ChapterCount:    len(doc.Chapters),
		Chapters:        make([]ChapterRecord, len(doc.Chapters)),
		CreatedAt:       doc.CreatedAt,
	}
	for i, ch := range doc.Chapters {
		r.Chapters[i] = NewChapterRecord(ch)
	}
	return r
}

func NewChapterRecord(ch book.Chapter) ChapterRecord {
	return ChapterRecord{
		Index:    ch.Index,
		Title:    ch.Title,
		Source:   ch.Source,
		Path:     ch.Path,
		Resolved: ch.Resolved,
		Text:     ch.Text,
		Markup:   ch.Markup,
	}
}

// Document converts r back into a Document.
func (r Record) Document() (*book.Document, error) {
	if r.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("record %s has schema %d: %w", r.ID, r.SchemaVersion, ErrUnsupportedSchema)
	}
	doc := &book.Document{
		ID:              r.ID,
		Title:           r.Title,
		Author:          r.Author,
		PublicationDate: r.PublicationDate,
		Language:        r.Language,
		Description:     r.Description,
		Chapters:        make([]book.Chapter, len(r.Chapters)),
		CreatedAt:       r.CreatedAt,
	}
	for i, c := range r.Chapters {
		doc.Chapters[i] = c.Chapter()
	}
	return doc, nil
}

func (c ChapterRecord) Chapter() book.Chapter {
	return book.Chapter{
		Index:    c.Index,
		Title:    c.Title,
		Source:   c.Source,
		Path:     c.Path,
		Resolved: c.Resolved,
		Text:     c.Text,
		Markup:   c.Markup,
	}
}

// Summary returns the listing view of r.
func (r Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Title:     r.Title,
		Author:    r.Author,
		Chapters:  r.ChapterCount,
		CreatedAt: r.CreatedAt,
	}
}
