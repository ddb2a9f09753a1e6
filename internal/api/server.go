package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/epubvoice/internal/config"
	"github.com/dgallion1/epubvoice/internal/ingest"
	"github.com/dgallion1/epubvoice/internal/narrate"
	"github.com/dgallion1/epubvoice/internal/pipeline"
	"github.com/dgallion1/epubvoice/internal/store"
	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Deps are the long-lived services the API serves from.
type Deps struct {
	Store        store.Store
	Ingestor     *ingest.Ingestor
	Orchestrator *pipeline.Orchestrator
	Narrator     *narrate.Service
	Voices       *voice.Selector
	SynthStats   *pipeline.SynthStats
}

// Server is the HTTP API server for epubvoice.
type Server struct {
	router   chi.Router
	deps     Deps
	upgrader websocket.Upgrader
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: cfg.AudioChunkSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Post("/api/documents/batch", s.handleBatchUpload)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Get("/api/documents/{docID}/chapters/{index}", s.handleChapter)
		r.Get("/api/documents/{docID}/chapters/{index}/markup", s.handleChapterMarkup)
		r.Get("/api/documents/{docID}/chapters/{index}/audio", s.handleChapterAudio)
		r.Get("/api/documents/{docID}/chapters/{index}/audio/ws", s.handleChapterAudioWS)

		r.Get("/api/voices", s.handleVoices)
		r.Get("/api/stats/synthesis", s.handleSynthStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
