package synth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/epubvoice/internal/voice"
	"github.com/dgallion1/epubvoice/internal/wav"
)

// Piper runs the piper command-line synthesizer. Each call spools the WAV
// output through a temp file that is removed before returning.
type Piper struct {
	bin      string
	spoolDir string
	log      *slog.Logger
}

// NewPiper uses the piper binary at bin. An empty spoolDir means the OS
// temp dir.
func NewPiper(bin, spoolDir string, log *slog.Logger) *Piper {
	return &Piper{bin: bin, spoolDir: spoolDir, log: log}
}

func (p *Piper) Synthesize(ctx context.Context, text string, v voice.Profile) (Result, error) {
	for _, path := range []string{v.ModelPath, v.ConfigPath} {
		if _, err := os.Stat(path); err != nil {
			return Result{}, &SynthesisError{Voice: v.Name, Err: fmt.Errorf("%s: %w", path, ErrModelNotFound)}
		}
	}

	spool, err := os.CreateTemp(p.spoolDir, "synth-*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("create spool file: %w", err)
	}
	spoolPath := spool.Name()
	spool.Close()
	defer os.Remove(spoolPath)

	cmd := exec.CommandContext(ctx, p.bin,
		"--model", v.ModelPath,
		"--config", v.ConfigPath,
		"--output_file", spoolPath,
	)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &SynthesisError{
			Voice: v.Name,
			Err:   fmt.Errorf("piper: %w: %s", err, truncate(strings.TrimSpace(stderr.String()), 500)),
		}
	}

	audio, err := os.ReadFile(spoolPath)
	if err != nil {
		return Result{}, fmt.Errorf("read spool file: %w", err)
	}
	if len(audio) == 0 {
		return Result{}, &SynthesisError{Voice: v.Name, Err: ErrEmptyAudio}
	}

	p.log.Debug("piper synthesis complete", "voice", v.Name, "bytes", len(audio))
	return Result{
		Audio:          audio,
		SelfDescribing: wav.IsRIFF(audio),
		Format:         wav.Mono16(v.SampleRate),
	}, nil
}
