package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/epubvoice/internal/synth"
	"github.com/dgallion1/epubvoice/internal/voice"
)

type fakeSynth struct {
	fn    func(ctx context.Context, call int) (synth.Result, error)
	calls atomic.Int32
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, v voice.Profile) (synth.Result, error) {
	n := int(f.calls.Add(1))
	return f.fn(ctx, n)
}

var testVoice = voice.Profile{Language: "en-US", Name: "test-voice", SampleRate: 22050}

func newPool(s synth.Synthesizer, maxConcurrent int, timeout time.Duration) *SynthPool {
	p := NewSynthPool(s, maxConcurrent, timeout, NewSynthStats(time.Hour), discard)
	p.backoff = func(int) time.Duration { return 0 }
	return p
}

func TestSynthPool_Success(t *testing.T) {
	fake := &fakeSynth{fn: func(context.Context, int) (synth.Result, error) {
		return synth.Result{Audio: []byte("RIFF"), SelfDescribing: true}, nil
	}}
	p := newPool(fake, 1, 0)

	res, err := p.Synthesize(context.Background(), "hello", testVoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Audio) != "RIFF" {
		t.Errorf("expected audio %q, got %q", "RIFF", res.Audio)
	}
	snap := p.Stats().Snapshot()
	if snap.Count != 1 || snap.TotalChars != 5 {
		t.Errorf("expected one sample of 5 chars, got %+v", snap)
	}
}

func TestSynthPool_RetriesRetryableErrors(t *testing.T) {
	fake := &fakeSynth{fn: func(_ context.Context, call int) (synth.Result, error) {
		if call < 3 {
			return synth.Result{}, &synth.RetryableError{StatusCode: 503, Message: "busy"}
		}
		return synth.Result{Audio: []byte{1}}, nil
	}}
	p := newPool(fake, 1, 0)

	if _, err := p.Synthesize(context.Background(), "x", testVoice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fake.calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestSynthPool_RetriesExhausted(t *testing.T) {
	fake := &fakeSynth{fn: func(context.Context, int) (synth.Result, error) {
		return synth.Result{}, &synth.RetryableError{StatusCode: 429, Message: "slow down"}
	}}
	p := newPool(fake, 1, 0)

	_, err := p.Synthesize(context.Background(), "x", testVoice)
	var synthErr *synth.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if !IsRetryable(err) {
		t.Errorf("expected wrapped RetryableError, got %v", err)
	}
	if got := fake.calls.Load(); got != MaxRetries {
		t.Errorf("expected %d calls, got %d", MaxRetries, got)
	}
	if p.Stats().Snapshot().Failures != 1 {
		t.Errorf("expected 1 recorded failure, got %d", p.Stats().Snapshot().Failures)
	}
}

func TestSynthPool_NonRetryableNotRetried(t *testing.T) {
	cause := &synth.SynthesisError{Voice: "test-voice", Err: synth.ErrModelNotFound}
	fake := &fakeSynth{fn: func(context.Context, int) (synth.Result, error) {
		return synth.Result{}, cause
	}}
	p := newPool(fake, 1, 0)

	_, err := p.Synthesize(context.Background(), "x", testVoice)
	if !errors.Is(err, synth.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if err != cause {
		t.Errorf("expected the backend's SynthesisError unchanged, got %v", err)
	}
	if got := fake.calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestSynthPool_PlainErrorWrapped(t *testing.T) {
	fake := &fakeSynth{fn: func(context.Context, int) (synth.Result, error) {
		return synth.Result{}, errors.New("boom")
	}}
	p := newPool(fake, 1, 0)

	_, err := p.Synthesize(context.Background(), "x", testVoice)
	var synthErr *synth.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected SynthesisError, got %v", err)
	}
	if synthErr.Voice != "test-voice" {
		t.Errorf("expected voice %q, got %q", "test-voice", synthErr.Voice)
	}
}

func TestSynthPool_Timeout(t *testing.T) {
	fake := &fakeSynth{fn: func(ctx context.Context, _ int) (synth.Result, error) {
		<-ctx.Done()
		return synth.Result{}, ctx.Err()
	}}
	p := newPool(fake, 1, 20*time.Millisecond)

	_, err := p.Synthesize(context.Background(), "x", testVoice)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	var synthErr *synth.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Errorf("expected timeout to surface as SynthesisError, got %v", err)
	}
}

func TestSynthPool_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	fake := &fakeSynth{fn: func(ctx context.Context, _ int) (synth.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return synth.Result{}, ctx.Err()
	}}
	p := newPool(fake, 1, 0)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Synthesize(ctx, "x", testVoice)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSynthPool_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fake := &fakeSynth{fn: func(context.Context, int) (synth.Result, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return synth.Result{Audio: []byte{0}}, nil
	}}
	p := newPool(fake, 2, 0)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Synthesize(context.Background(), "x", testVoice); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent syntheses, got %d", got)
	}
	if got := p.Stats().Snapshot().Count; got != 8 {
		t.Errorf("expected 8 samples, got %d", got)
	}
}

func TestBackoff(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		if d <= 0 {
			t.Errorf("attempt %d: expected positive backoff, got %s", attempt, d)
		}
		if d > 45*time.Second {
			t.Errorf("attempt %d: expected backoff capped near 30s, got %s", attempt, d)
		}
	}
}
