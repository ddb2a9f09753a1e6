package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/epubvoice/internal/synth"
	"github.com/dgallion1/epubvoice/internal/voice"
)

// SynthPool bounds concurrent synthesis and retries transient backend
// failures. It is safe for concurrent use.
type SynthPool struct {
	synth   synth.Synthesizer
	sem     chan struct{}
	timeout time.Duration
	stats   *SynthStats
	log     *slog.Logger

	backoff func(attempt int) time.Duration
}

func NewSynthPool(s synth.Synthesizer, maxConcurrent int, timeout time.Duration, stats *SynthStats, log *slog.Logger) *SynthPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if stats == nil {
		stats = NewSynthStats(time.Hour)
	}
	return &SynthPool{
		synth:   s,
		sem:     make(chan struct{}, maxConcurrent),
		timeout: timeout,
		stats:   stats,
		log:     log,
		backoff: Backoff,
	}
}

// Stats returns the pool's latency tracker.
func (p *SynthPool) Stats() *SynthStats {
	return p.stats
}

type synthResult struct {
	res synth.Result
	err error
}

// Synthesize waits for a free slot, then runs synthesis on its own
// goroutine. The caller returns as soon as ctx is done; the slot is held
// until the backend call actually finishes.
func (p *SynthPool) Synthesize(ctx context.Context, text string, v voice.Profile) (synth.Result, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return synth.Result{}, ctx.Err()
	}

	results := make(chan synthResult, 1)
	go func() {
		defer func() { <-p.sem }()
		res, err := p.run(ctx, text, v)
		results <- synthResult{res: res, err: err}
	}()

	select {
	case r := <-results:
		return r.res, r.err
	case <-ctx.Done():
		return synth.Result{}, ctx.Err()
	}
}

func (p *SynthPool) run(ctx context.Context, text string, v voice.Profile) (synth.Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := p.log.With("voice", v.Name)
	start := time.Now()

	var res synth.Result
	var lastErr error
	for attempt := range MaxRetries {
		res, lastErr = p.synth.Synthesize(ctx, text, v)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		log.Warn("retryable synthesis error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr != nil {
		p.stats.RecordFailure()
		log.Error("synthesis failed", "error", lastErr)
		var synthErr *synth.SynthesisError
		if errors.As(lastErr, &synthErr) || errors.Is(lastErr, context.Canceled) {
			return synth.Result{}, lastErr
		}
		return synth.Result{}, &synth.SynthesisError{Voice: v.Name, Err: lastErr}
	}

	elapsed := time.Since(start).Milliseconds()
	p.stats.Record(elapsed, utf8.RuneCountInString(text))
	log.Info("synthesis complete", "duration_ms", elapsed, "bytes", len(res.Audio))
	return res, nil
}
