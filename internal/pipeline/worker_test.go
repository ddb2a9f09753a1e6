package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/config"
	"github.com/dgallion1/epubvoice/internal/ingest"
	"github.com/dgallion1/epubvoice/internal/store"
)

var discard = slog.New(slog.DiscardHandler)

// buildEPUB returns a package whose spine lists the given chapters in order.
// A chapter with empty markup is listed but not stored in the archive.
func buildEPUB(t *testing.T, title string, chapters ...string) []byte {
	t.Helper()
	var manifest, spine strings.Builder
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	for i, markup := range chapters {
		href := fmt.Sprintf("c%d.xhtml", i)
		fmt.Fprintf(&manifest, `<item id="i%d" href="%s" media-type="application/xhtml+xml"/>`, i, href)
		fmt.Fprintf(&spine, `<itemref idref="i%d"/>`, i)
		if markup != "" {
			write(href, "<html><body>"+markup+"</body></html>")
		}
	}
	write("content.opf", fmt.Sprintf(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
<metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>%s</dc:title></metadata>
<manifest>%s</manifest>
<spine>%s</spine>
</package>`, title, manifest.String(), spine.String()))

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newWorker(st store.Store) *Worker {
	return NewWorker(ingest.NewIngestor(ingest.NewResolver(discard), discard), st, discard)
}

type failingStore struct {
	store.Store
}

func (failingStore) Save(context.Context, *book.Document) (string, error) {
	return "", errors.New("disk full")
}

func TestWorker_Completed(t *testing.T) {
	st := store.NewMemory()
	job := NewJob("book.epub", buildEPUB(t, "Book", "<p>One</p>", "<p>Two</p>"))

	newWorker(st).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Title != "Book" {
		t.Errorf("expected title %q, got %q", "Book", snap.Title)
	}
	if snap.Progress.TotalChapters != 2 || snap.Progress.Resolved != 2 {
		t.Errorf("expected 2 resolved chapters, got %+v", snap.Progress)
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}

	doc, err := st.Get(context.Background(), snap.DocID)
	if err != nil {
		t.Fatalf("expected stored document, got %v", err)
	}
	if doc.Chapters[1].Text != "Two" {
		t.Errorf("expected chapter text %q, got %q", "Two", doc.Chapters[1].Text)
	}
}

func TestWorker_PartialOnGap(t *testing.T) {
	st := store.NewMemory()
	job := NewJob("book.epub", buildEPUB(t, "Book", "<p>One</p>", "", "<p>Three</p>"))

	newWorker(st).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if len(snap.Progress.Gaps) != 1 || snap.Progress.Gaps[0] != 1 {
		t.Errorf("expected gaps [1], got %v", snap.Progress.Gaps)
	}
	if snap.DocID == "" {
		t.Error("expected partial document to be stored")
	}
}

func TestWorker_IngestionFailure(t *testing.T) {
	job := NewJob("book.epub", []byte("not a zip"))

	newWorker(store.NewMemory()).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if snap.Phase != "ingesting" {
		t.Errorf("expected phase %q, got %q", "ingesting", snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_StoreFailure(t *testing.T) {
	job := NewJob("book.epub", buildEPUB(t, "Book", "<p>One</p>"))

	newWorker(failingStore{}).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "storing" {
		t.Fatalf("expected failed in storing, got %q in %q", snap.Status, snap.Phase)
	}
	if snap.DocID != "" {
		t.Errorf("expected no document ID, got %q", snap.DocID)
	}
}

func testConfig() config.Config {
	return config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour}
}

func TestOrchestrator_ProcessesSubmittedJobs(t *testing.T) {
	st := store.NewMemory()
	ing := ingest.NewIngestor(ingest.NewResolver(discard), discard)
	o := NewOrchestrator(testConfig(), ing, st, discard)
	o.Start(context.Background())
	defer o.Stop()

	jobs := []*Job{
		NewJob("a.epub", buildEPUB(t, "A", "<p>a</p>")),
		NewJob("b.epub", buildEPUB(t, "B", "<p>b</p>")),
	}
	for _, j := range jobs {
		if err := o.Submit(j); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, j := range jobs {
		for {
			status := o.GetJob(j.ID).Snapshot().Status
			if status == StatusCompleted {
				break
			}
			if status == StatusFailed || time.Now().After(deadline) {
				t.Fatalf("job %s: expected completion, got %q", j.Filename, status)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	summaries, err := st.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("expected 2 stored documents, got %d", len(summaries))
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, nil, store.NewMemory(), discard)

	if err := o.Submit(NewJob("a.epub", nil)); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	overflow := NewJob("b.epub", []byte("x"))
	err := o.Submit(overflow)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if overflow.Snapshot().Status != StatusFailed {
		t.Errorf("expected overflow job to be failed, got %q", overflow.Snapshot().Status)
	}
	if o.GetJob(overflow.ID) == nil {
		t.Error("expected overflow job to remain pollable")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
	o.Stop()
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(testConfig(), nil, store.NewMemory(), discard)
	o.Stop()
	o.Stop()

	if err := o.Submit(NewJob("a.epub", nil)); err == nil {
		t.Error("expected error submitting to a stopped pipeline")
	}
}
