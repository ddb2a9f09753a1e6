// Package ingest turns EPUB bytes into a book.Document.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/epub"
)

// IngestionError reports a package that could not be opened at all.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Report summarizes one ingestion.
type Report struct {
	Chapters int   `json:"chapters"`
	Resolved int   `json:"resolved"`
	Gaps     []int `json:"gaps,omitempty"`
}

// Ingestor opens packages and extracts their metadata and chapters.
type Ingestor struct {
	resolver *Resolver
	log      *slog.Logger
}

func NewIngestor(resolver *Resolver, log *slog.Logger) *Ingestor {
	return &Ingestor{resolver: resolver, log: log}
}

// Ingest parses data into a Document. The returned Document has no ID; it
// is assigned when the caller saves it.
func (in *Ingestor) Ingest(ctx context.Context, data []byte) (*book.Document, *Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	pkg, err := epub.Open(data)
	if err != nil {
		return nil, nil, &IngestionError{Err: err}
	}

	md := pkg.Metadata
	doc := &book.Document{
		Title:           orDefault(md.Title, book.DefaultTitle),
		Author:          orDefault(md.Creator, book.DefaultAuthor),
		PublicationDate: book.Optional(md.Date),
		Language:        book.Optional(md.Language),
		Description:     book.Optional(md.Description),
	}

	ids := make([]string, len(pkg.Spine))
	for i, item := range pkg.Spine {
		ids[i] = item.Href
	}
	doc.Chapters = in.resolver.Resolve(ids, pkg.OPFDir, pkg.Lookup)

	report := &Report{Chapters: len(doc.Chapters), Gaps: doc.Gaps()}
	report.Resolved = report.Chapters - len(report.Gaps)

	in.log.Info("package ingested",
		"title", doc.Title,
		"epub_version", pkg.Version,
		"chapters", report.Chapters,
		"gaps", len(report.Gaps),
	)
	return doc, report, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
