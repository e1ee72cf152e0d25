//go:build whisper_cpp

package stt

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/audio"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const whisperSampleRate = 16000

// whisperBackend runs whisper.cpp in-process. The model context is shared device state and
// must be reached through a Gate when more than one worker exists.
type whisperBackend struct {
	model   whisperpkg.Model
	threads uint
}

func NewWhisperBackend(cfg config.RecognitionConfig) (Accelerated, error) {
	threads := uint(runtime.NumCPU())
	if cfg.Threads > 0 {
		threads = uint(cfg.Threads)
	}
	m, err := whisperpkg.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &whisperBackend{model: m, threads: threads}, nil
}

func (b *whisperBackend) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	if len(samples) == 0 {
		return Result{Language: language}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	samples = audio.ResampleLinear(samples, sampleRate, whisperSampleRate)

	wctx, err := b.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("create context: %w", err)
	}
	wctx.SetThreads(b.threads)
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return Result{}, fmt.Errorf("set language %q: %w", language, err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process audio: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}

	lang := wctx.Language()
	if lang == "" || lang == "auto" {
		lang = wctx.DetectedLanguage()
	}
	return Result{Text: strings.Join(segments, " "), Language: lang}, nil
}

// Synchronize is a no-op: whisper_full returns only after the device graph has finished.
func (b *whisperBackend) Synchronize() error {
	return nil
}

func (b *whisperBackend) Close() error {
	if b.model != nil {
		return b.model.Close()
	}
	return nil
}
