package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/ingest"
	"github.com/dgallion1/epubvoice/internal/parser"
	"github.com/dgallion1/epubvoice/internal/pipeline"
	"github.com/dgallion1/epubvoice/internal/store"
	"github.com/dgallion1/epubvoice/internal/synth"
	"github.com/go-chi/chi/v5"
)

type chapterSummary struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Resolved bool   `json:"resolved"`
}

type documentResponse struct {
	ID              string           `json:"document_id"`
	Title           string           `json:"title"`
	Author          string           `json:"author"`
	PublicationDate *string          `json:"publication_date"`
	Language        *string          `json:"language"`
	Description     *string          `json:"description"`
	ChapterCount    int              `json:"chapter_count"`
	Chapters        []chapterSummary `json:"chapters"`
	CreatedAt       time.Time        `json:"created_at"`
	Report          *ingest.Report   `json:"report,omitempty"`
}

func newDocumentResponse(doc *book.Document, report *ingest.Report) documentResponse {
	chapters := make([]chapterSummary, len(doc.Chapters))
	for i, ch := range doc.Chapters {
		chapters[i] = chapterSummary{Index: ch.Index, Title: ch.Title, Resolved: ch.Resolved}
	}
	return documentResponse{
		ID:              doc.ID,
		Title:           doc.Title,
		Author:          doc.Author,
		PublicationDate: doc.PublicationDate,
		Language:        doc.Language,
		Description:     doc.Description,
		ChapterCount:    len(doc.Chapters),
		Chapters:        chapters,
		CreatedAt:       doc.CreatedAt,
		Report:          report,
	}
}

// handleUpload ingests one package synchronously and stores it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := s.readUpload(file)
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	ctx := r.Context()
	doc, report, err := s.deps.Ingestor.Ingest(ctx, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.deps.Store.Save(ctx, doc); err != nil {
		s.writeError(w, fmt.Errorf("save %s: %w", filename, err))
		return
	}

	s.log.Info("document uploaded", "doc_id", doc.ID, "filename", filename, "chapters", report.Chapters, "gaps", len(report.Gaps))
	writeJSON(w, http.StatusOK, newDocumentResponse(doc, report))
}

// handleBatchUpload queues one ingestion job per uploaded file.
func (s *Server) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		data, err := s.readPart(fh)
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, data)
		if err := s.deps.Orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"job_id":   job.ID,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.deps.Store.List(r.Context())
	if err != nil {
		s.writeError(w, fmt.Errorf("list documents: %w", err))
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": summaries})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Store.Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDocumentResponse(doc, nil))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.deps.Store.Delete(r.Context(), docID); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("document deleted", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{"document_id": docID, "deleted": true})
}

func (s *Server) readUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return data, nil
}

func (s *Server) readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer f.Close()
	return s.readUpload(f)
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ingestErr *ingest.IngestionError
	var synthErr *synth.SynthesisError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, book.ErrChapterNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ingestErr):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &synthErr):
		s.log.Error("synthesis failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		s.log.Debug("request cancelled", "error", err)
	default:
		s.log.Error("request failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func formError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", maxErr.Limit), http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
