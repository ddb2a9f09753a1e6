package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/epubvoice/internal/ingest"
	"github.com/dgallion1/epubvoice/internal/store"
)

// Worker processes a single ingestion job.
type Worker struct {
	ingestor *ingest.Ingestor
	store    store.Store
	log      *slog.Logger
}

func NewWorker(ing *ingest.Ingestor, st store.Store, log *slog.Logger) *Worker {
	return &Worker{
		ingestor: ing,
		store:    st,
		log:      log,
	}
}

// Process ingests the job's package and persists the resulting document.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	defer job.ReleaseFileData()

	// Phase 1: Ingest
	job.SetStatus(StatusIngesting, "ingesting")
	doc, report, err := w.ingestor.Ingest(ctx, job.FileData())
	if err != nil {
		log.Error("ingestion failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "ingesting")
		return
	}
	job.SetReport(doc.Title, report)

	// Phase 2: Store
	job.SetStatus(StatusStoring, "storing")
	id, err := w.store.Save(ctx, doc)
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetDocID(id)

	for _, idx := range report.Gaps {
		job.AddError(fmt.Sprintf("chapter %d: content not resolved", idx))
	}
	if len(report.Gaps) > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	log.Info("job complete", "doc_id", id, "chapters", report.Chapters, "gaps", len(report.Gaps))
}
