package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "API_KEY", "STORE_BACKEND", "MAX_UPLOAD_BYTES", "WORKER_COUNT",
		"MAX_QUEUE_SIZE", "JOB_TTL", "SYNTH_BACKEND", "MAX_CONCURRENT_SYNTH",
		"SYNTH_TIMEOUT", "REMOTE_TTS_RPS", "REMOTE_TTS_MAX_CHARS",
		"DEFAULT_LANGUAGE", "AUDIO_CHUNK_SIZE", "PATHSTORE_PREFIX",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8081" {
		t.Errorf("expected port 8081, got %q", cfg.Port)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("expected store backend %q, got %q", StoreMemory, cfg.StoreBackend)
	}
	if cfg.SynthBackend != SynthPiper {
		t.Errorf("expected synth backend %q, got %q", SynthPiper, cfg.SynthBackend)
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("expected 50MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.WorkerCount != 2 || cfg.MaxQueueSize != 50 {
		t.Errorf("expected workers=2 queue=50, got workers=%d queue=%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
	if cfg.SynthTimeout != 5*time.Minute {
		t.Errorf("expected synth timeout 5m, got %s", cfg.SynthTimeout)
	}
	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("expected default language en-US, got %q", cfg.DefaultLanguage)
	}
	if cfg.AudioChunkSize != 4096 {
		t.Errorf("expected chunk size 4096, got %d", cfg.AudioChunkSize)
	}
	if cfg.PathstorePrefix != "epubvoice" {
		t.Errorf("expected pathstore prefix epubvoice, got %q", cfg.PathstorePrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_CONCURRENT_SYNTH", "7")
	t.Setenv("SYNTH_TIMEOUT", "30s")
	t.Setenv("REMOTE_TTS_RPS", "0.5")
	t.Setenv("JOB_TTL", "10m")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Port)
	}
	if cfg.MaxConcurrentSynth != 7 {
		t.Errorf("expected 7 concurrent syntheses, got %d", cfg.MaxConcurrentSynth)
	}
	if cfg.SynthTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.SynthTimeout)
	}
	if cfg.RemoteTTSRPS != 0.5 {
		t.Errorf("expected rps 0.5, got %f", cfg.RemoteTTSRPS)
	}
	if cfg.JobTTL != 10*time.Minute {
		t.Errorf("expected job ttl 10m, got %s", cfg.JobTTL)
	}
}

func TestLoad_NonPositiveValuesClamped(t *testing.T) {
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("MAX_QUEUE_SIZE", "-3")
	t.Setenv("AUDIO_CHUNK_SIZE", "-1")
	t.Setenv("MAX_UPLOAD_BYTES", "0")

	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("expected clamped worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.MaxQueueSize != 50 {
		t.Errorf("expected clamped queue size 50, got %d", cfg.MaxQueueSize)
	}
	if cfg.AudioChunkSize != 4096 {
		t.Errorf("expected clamped chunk size 4096, got %d", cfg.AudioChunkSize)
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("expected clamped upload limit, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoad_UnparsableFallsBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("SYNTH_TIMEOUT", "soon")

	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("expected fallback worker count 2, got %d", cfg.WorkerCount)
	}
	if cfg.SynthTimeout != 5*time.Minute {
		t.Errorf("expected fallback timeout 5m, got %s", cfg.SynthTimeout)
	}
}

func TestValidate(t *testing.T) {
	base := Config{StoreBackend: StoreMemory, SynthBackend: SynthTone, DefaultLanguage: "en-US"}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown store", func(c *Config) { c.StoreBackend = "sqlite" }, true},
		{"pathstore without url", func(c *Config) { c.StoreBackend = StorePathstore; c.PathstoreURL = "" }, true},
		{"pathstore with url", func(c *Config) { c.StoreBackend = StorePathstore; c.PathstoreURL = "http://ps" }, false},
		{"unknown synth", func(c *Config) { c.SynthBackend = "espeak" }, true},
		{"remote without url", func(c *Config) { c.SynthBackend = SynthRemote }, true},
		{"remote with url", func(c *Config) { c.SynthBackend = SynthRemote; c.RemoteTTSURL = "http://tts" }, false},
		{"empty language", func(c *Config) { c.DefaultLanguage = "" }, true},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		err := cfg.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", tc.name, err)
		}
	}
}
