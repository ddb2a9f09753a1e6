package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	StoreMemory    = "memory"
	StorePathstore = "pathstore"

	SynthPiper  = "piper"
	SynthRemote = "remote"
	SynthTone   = "tone"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Document store
	StoreBackend    string
	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string

	// Upload limits
	MaxUploadBytes int64

	// Ingestion worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// Synthesis
	SynthBackend       string
	MaxConcurrentSynth int
	SynthTimeout       time.Duration
	PiperBin           string
	SpoolDir           string
	RemoteTTSURL       string
	RemoteTTSRPS       float64
	RemoteTTSMaxChars  int

	// Voices
	VoiceModelDir   string
	DefaultLanguage string

	// Streaming
	AudioChunkSize int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8081"),

		APIKey: os.Getenv("API_KEY"),

		StoreBackend:    envOr("STORE_BACKEND", StoreMemory),
		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		PathstorePrefix: envOr("PATHSTORE_PREFIX", "epubvoice"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		SynthBackend:       envOr("SYNTH_BACKEND", SynthPiper),
		MaxConcurrentSynth: envInt("MAX_CONCURRENT_SYNTH", 2),
		SynthTimeout:       envDuration("SYNTH_TIMEOUT", 5*time.Minute),
		PiperBin:           envOr("PIPER_BIN", "piper"),
		SpoolDir:           envOr("SPOOL_DIR", os.TempDir()),
		RemoteTTSURL:       os.Getenv("REMOTE_TTS_URL"),
		RemoteTTSRPS:       envFloat("REMOTE_TTS_RPS", 2),
		RemoteTTSMaxChars:  envInt("REMOTE_TTS_MAX_CHARS", 250),

		VoiceModelDir:   envOr("VOICE_MODEL_DIR", "./assets/voices"),
		DefaultLanguage: envOr("DEFAULT_LANGUAGE", "en-US"),

		AudioChunkSize: envInt("AUDIO_CHUNK_SIZE", 4096),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.MaxConcurrentSynth <= 0 {
		cfg.MaxConcurrentSynth = 2
	}
	if cfg.SynthTimeout <= 0 {
		cfg.SynthTimeout = 5 * time.Minute
	}
	if cfg.RemoteTTSRPS <= 0 {
		cfg.RemoteTTSRPS = 2
	}
	if cfg.RemoteTTSMaxChars <= 0 {
		cfg.RemoteTTSMaxChars = 250
	}
	if cfg.AudioChunkSize <= 0 {
		cfg.AudioChunkSize = 4096
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StorePathstore:
		if c.PathstoreURL == "" {
			return fmt.Errorf("PATHSTORE_URL is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.SynthBackend {
	case SynthPiper, SynthTone:
	case SynthRemote:
		if c.RemoteTTSURL == "" {
			return fmt.Errorf("REMOTE_TTS_URL is required for the remote synthesis backend")
		}
	default:
		return fmt.Errorf("unknown SYNTH_BACKEND %q", c.SynthBackend)
	}

	if c.DefaultLanguage == "" {
		return fmt.Errorf("DEFAULT_LANGUAGE must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
