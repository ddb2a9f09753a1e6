// Package narrate serves stored chapters as text, markup, and audio.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dgallion1/epubvoice/internal/audiostream"
	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/store"
	"github.com/dgallion1/epubvoice/internal/synth"
	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/dgallion1/epubvoice/internal/wav"
)

// Service reads chapters from a store and synthesizes them on demand.
type Service struct {
	store     store.Store
	voices    *voice.Selector
	synth     synth.Synthesizer
	chunkSize int
	log       *slog.Logger
}

func NewService(st store.Store, voices *voice.Selector, s synth.Synthesizer, chunkSize int, log *slog.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = audiostream.DefaultChunkSize
	}
	return &Service{
		store:     st,
		voices:    voices,
		synth:     s,
		chunkSize: chunkSize,
		log:       log,
	}
}

// Audio is a chapter's synthesized audio ready for delivery.
type Audio struct {
	Stream *audiostream.Stream
	Voice  voice.Profile
}

// ChapterText returns the chapter with its extracted text.
func (s *Service) ChapterText(ctx context.Context, docID string, index int) (book.Chapter, error) {
	return s.store.Chapter(ctx, docID, index)
}

// ChapterMarkup returns the decoded source markup of a chapter.
func (s *Service) ChapterMarkup(ctx context.Context, docID string, index int) (string, error) {
	ch, err := s.store.Chapter(ctx, docID, index)
	if err != nil {
		return "", err
	}
	return ch.Markup, nil
}

// ChapterAudio synthesizes a chapter in the voice chosen for langPref and
// wraps the result in a pull stream. Raw PCM from the backend is preceded
// by a WAV header so every stream is a playable file. A chapter with no
// text yields a header-only WAV without calling the backend.
func (s *Service) ChapterAudio(ctx context.Context, docID string, index int, langPref string) (*Audio, error) {
	ch, err := s.store.Chapter(ctx, docID, index)
	if err != nil {
		return nil, err
	}

	v := s.voices.Select(langPref)
	log := s.log.With("doc_id", docID, "chapter", index, "voice", v.Name)

	if strings.TrimSpace(ch.Text) == "" {
		log.Info("chapter has no text, returning silent audio", "resolved", ch.Resolved)
		header := wav.Header(wav.Mono16(v.SampleRate), 0)
		return &Audio{Stream: s.stream(nil, header), Voice: v}, nil
	}

	res, err := s.synth.Synthesize(ctx, ch.Text, v)
	if err != nil {
		return nil, err
	}
	if len(res.Audio) == 0 {
		return nil, &synth.SynthesisError{Voice: v.Name, Err: synth.ErrEmptyAudio}
	}

	var header []byte
	if !res.SelfDescribing {
		if int64(len(res.Audio)) > math.MaxUint32-wav.HeaderSize {
			return nil, &synth.SynthesisError{Voice: v.Name, Err: fmt.Errorf("audio too large for WAV: %d bytes", len(res.Audio))}
		}
		format := res.Format
		if format.SampleRate == 0 {
			format = wav.Mono16(v.SampleRate)
		}
		header = wav.Header(format, uint32(len(res.Audio)))
	}

	log.Info("chapter audio ready", "bytes", len(res.Audio), "self_describing", res.SelfDescribing)
	return &Audio{Stream: s.stream(res.Audio, header), Voice: v}, nil
}

func (s *Service) stream(audio, header []byte) *audiostream.Stream {
	opts := []audiostream.Option{audiostream.WithChunkSize(s.chunkSize)}
	if len(header) > 0 {
		opts = append(opts, audiostream.WithHeader(header))
	}
	return audiostream.New(audio, opts...)
}
