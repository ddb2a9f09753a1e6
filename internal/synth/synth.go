// Package synth turns chapter text into audio through a pluggable backend.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/dgallion1/epubvoice/internal/wav"
)

var (
	// ErrModelNotFound means a voice's model or config file is missing.
	ErrModelNotFound = errors.New("voice model not found")

	// ErrEmptyAudio means a backend finished without producing audio.
	ErrEmptyAudio = errors.New("synthesis produced no audio")
)

// Result is the complete audio for one synthesis call.
type Result struct {
	Audio []byte
	// SelfDescribing is true when Audio already starts with a WAV header.
	// Otherwise Audio is raw PCM in Format.
	SelfDescribing bool
	Format         wav.Format
}

// Synthesizer produces audio for text in the given voice. Synthesis is
// eager: the returned Result holds every byte.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, v voice.Profile) (Result, error)
}

// SynthesisError reports a failed synthesis for one request.
type SynthesisError struct {
	Voice string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis with voice %s: %v", e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// RetryableError indicates a transient backend failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
