package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/epubvoice/internal/chunker"
	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/dgallion1/epubvoice/internal/wav"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps a single segment's WAV response.
const maxResponseBytes = 64 << 20

// RemoteConfig controls a Remote backend.
type RemoteConfig struct {
	URL         string
	RPS         float64 // Segment requests per second
	MaxChars    int     // Segment length limit in runes
	MaxParallel int     // Segments in flight at once
	Timeout     time.Duration
}

// Remote synthesizes through an HTTP TTS server that accepts one text
// segment per request and answers with a WAV file. Chapter text is split
// into sentence segments, synthesized concurrently under a rate limit, and
// merged in order.
type Remote struct {
	url         string
	maxChars    int
	maxParallel int
	limiter     *rate.Limiter
	httpClient  *http.Client
	log         *slog.Logger
}

func NewRemote(cfg RemoteConfig, log *slog.Logger) *Remote {
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Remote{
		url:         cfg.URL,
		maxChars:    cfg.MaxChars,
		maxParallel: cfg.MaxParallel,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

type remoteRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
}

func (r *Remote) Synthesize(ctx context.Context, text string, v voice.Profile) (Result, error) {
	segments := chunker.Segment(text, r.maxChars)
	if len(segments) == 0 {
		return Result{}, &SynthesisError{Voice: v.Name, Err: ErrEmptyAudio}
	}

	parts := make([][]byte, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)
	for i, seg := range segments {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return err
			}
			audio, err := r.synthesizeSegment(gctx, seg, v)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
			parts[i] = audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}

	combined, err := wav.Combine(parts)
	if err != nil {
		return Result{}, &SynthesisError{Voice: v.Name, Err: err}
	}

	r.log.Debug("remote synthesis complete", "voice", v.Name, "segments", len(segments), "bytes", len(combined))
	return Result{Audio: combined, SelfDescribing: true, Format: wav.Mono16(v.SampleRate)}, nil
}

func (r *Remote) synthesizeSegment(ctx context.Context, text string, v voice.Profile) ([]byte, error) {
	body, err := json.Marshal(remoteRequest{
		Text:       text,
		Voice:      v.Name,
		Language:   v.Language,
		SampleRate: v.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SynthesisError{
			Voice: v.Name,
			Err:   fmt.Errorf("tts server status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}
	if !wav.IsRIFF(respBody) {
		return nil, &SynthesisError{Voice: v.Name, Err: fmt.Errorf("tts server returned %d bytes that are not WAV", len(respBody))}
	}
	return respBody, nil
}

// Close releases idle connections.
func (r *Remote) Close() {
	r.httpClient.CloseIdleConnections()
}
