package stt

import (
	"context"
)

// Result captures backend output for one chunk.
type Result struct {
	Text     string
	Language string
}

// Backend abstracts speech-to-text inference over normalized mono samples.
type Backend interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error)
}

// Accelerated is implemented by backends whose compute context must not receive concurrent
// submissions. Synchronize blocks until all device work issued so far has completed.
type Accelerated interface {
	Backend
	Synchronize() error
}
