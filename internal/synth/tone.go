package synth

import (
	"context"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/dgallion1/epubvoice/internal/wav"
)

// Tone is a dependency-free backend that renders text as a sine tone, one
// short beep per rune. Output is raw 16-bit mono PCM, so callers must add a
// WAV header.
type Tone struct {
	Frequency float64 // Hz
	PerRuneMs int
}

func NewTone() *Tone {
	return &Tone{Frequency: 440, PerRuneMs: 20}
}

func (t *Tone) Synthesize(ctx context.Context, text string, v voice.Profile) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if text == "" {
		return Result{}, &SynthesisError{Voice: v.Name, Err: ErrEmptyAudio}
	}

	rate := v.SampleRate
	if rate <= 0 {
		rate = 22050
	}
	samples := utf8.RuneCountInString(text) * rate * t.PerRuneMs / 1000
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		s := math.Sin(2 * math.Pi * t.Frequency * float64(i) / float64(rate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*math.MaxInt16/4)))
	}

	return Result{Audio: pcm, Format: wav.Mono16(rate)}, nil
}
