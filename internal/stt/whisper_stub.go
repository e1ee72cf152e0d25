//go:build !whisper_cpp

package stt

import (
	"errors"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
)

// NewWhisperBackend is unavailable unless the binary is built with the whisper_cpp tag.
func NewWhisperBackend(config.RecognitionConfig) (Accelerated, error) {
	return nil, errors.New("whisper backend not compiled in (build with -tags whisper_cpp)")
}
