package stt

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
)

// ResolveMode maps "auto" onto a concrete backend for the host.
func ResolveMode(cfg config.RecognitionConfig, goos string) string {
	if cfg.Mode != "auto" {
		return cfg.Mode
	}
	switch {
	case goos == "darwin":
		return "whisper"
	case cfg.Command != "":
		return "exec"
	default:
		return "mock"
	}
}

// NewBackend selects the backend variant once at startup. Accelerator variants are wrapped
// with gate when cfg.Gate is set; otherwise they still run their barrier after each call.
func NewBackend(cfg config.RecognitionConfig, gate *Gate, log *slog.Logger) (Backend, error) {
	mode := ResolveMode(cfg, runtime.GOOS)
	log.Info("selecting transcription backend", slog.String("mode", mode), slog.Bool("gated", cfg.Gate && mode == "whisper"))
	switch mode {
	case "mock":
		return NewMockBackend(), nil
	case "exec":
		return NewExecBackend(cfg)
	case "whisper":
		acc, err := NewWhisperBackend(cfg)
		if err != nil {
			return nil, err
		}
		if !cfg.Gate {
			gate = nil
		}
		return Gated(acc, gate), nil
	default:
		return nil, fmt.Errorf("unknown recognition mode %q", mode)
	}
}
