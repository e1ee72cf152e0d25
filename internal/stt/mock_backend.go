package stt

import (
	"context"
	"fmt"
)

type mockBackend struct{}

// NewMockBackend returns a backend that describes the audio it was given instead of transcribing it.
func NewMockBackend() Backend {
	return &mockBackend{}
}

func (m *mockBackend) Transcribe(_ context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	if len(samples) == 0 {
		return Result{Language: language}, nil
	}
	seconds := float64(len(samples)) / float64(max(sampleRate, 1))
	return Result{
		Text:     fmt.Sprintf("[mock transcript %.1fs]", seconds),
		Language: language,
	}, nil
}
