package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/epubvoice/internal/api"
	"github.com/dgallion1/epubvoice/internal/config"
	"github.com/dgallion1/epubvoice/internal/ingest"
	"github.com/dgallion1/epubvoice/internal/narrate"
	"github.com/dgallion1/epubvoice/internal/pathstore"
	"github.com/dgallion1/epubvoice/internal/pipeline"
	"github.com/dgallion1/epubvoice/internal/store"
	"github.com/dgallion1/epubvoice/internal/synth"
	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to load .env", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store.
	var st store.Store
	var ps *pathstore.Client
	switch cfg.StoreBackend {
	case config.StorePathstore:
		ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		st = pathstore.NewDocumentStore(ps, cfg.PathstorePrefix)
	default:
		st = store.NewMemory()
	}

	// Initialize voices and synthesis.
	voices, err := voice.NewSelector(voice.DefaultProfiles(cfg.VoiceModelDir), cfg.DefaultLanguage)
	if err != nil {
		log.Error("invalid voice configuration", "error", err)
		os.Exit(1)
	}

	var backend synth.Synthesizer
	var remote *synth.Remote
	switch cfg.SynthBackend {
	case config.SynthRemote:
		remote = synth.NewRemote(synth.RemoteConfig{
			URL:         cfg.RemoteTTSURL,
			RPS:         cfg.RemoteTTSRPS,
			MaxChars:    cfg.RemoteTTSMaxChars,
			MaxParallel: cfg.MaxConcurrentSynth,
			Timeout:     cfg.SynthTimeout,
		}, log)
		backend = remote
	case config.SynthTone:
		backend = synth.NewTone()
	default:
		backend = synth.NewPiper(cfg.PiperBin, cfg.SpoolDir, log)
	}

	stats := pipeline.NewSynthStats(time.Hour)
	pool := pipeline.NewSynthPool(backend, cfg.MaxConcurrentSynth, cfg.SynthTimeout, stats, log)

	// Initialize pipeline.
	ingestor := ingest.NewIngestor(ingest.NewResolver(log), log)
	orch := pipeline.NewOrchestrator(cfg, ingestor, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Store:        st,
		Ingestor:     ingestor,
		Orchestrator: orch,
		Narrator:     narrate.NewService(st, voices, pool, cfg.AudioChunkSize, log),
		Voices:       voices,
		SynthStats:   stats,
	}, log, cfg)

	// No WriteTimeout: audio streams run as long as synthesis plus delivery.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if remote != nil {
			remote.Close()
		}
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting epubvoice",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"synth", cfg.SynthBackend,
		"default_voice", voices.Default().Name,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
