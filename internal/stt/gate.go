package stt

import (
	"context"
	"fmt"
	"sync"
)

// Gate serializes inference on a shared accelerator context. The holder runs the
// backend's synchronization barrier before the gate is released.
type Gate struct {
	mu sync.Mutex
}

func NewGate() *Gate {
	return &Gate{}
}

// Run executes fn then barrier while holding the gate. A nil gate runs both ungated.
func (g *Gate) Run(fn func() error, barrier func() error) error {
	if g != nil {
		g.mu.Lock()
		defer g.mu.Unlock()
	}
	err := fn()
	if barrier != nil {
		if syncErr := barrier(); syncErr != nil && err == nil {
			err = fmt.Errorf("synchronize accelerator: %w", syncErr)
		}
	}
	return err
}

type gatedBackend struct {
	inner Accelerated
	gate  *Gate
}

// Gated wraps an accelerator backend so every call passes through gate.
func Gated(inner Accelerated, gate *Gate) Backend {
	return &gatedBackend{inner: inner, gate: gate}
}

func (b *gatedBackend) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (Result, error) {
	var result Result
	err := b.gate.Run(func() error {
		var err error
		result, err = b.inner.Transcribe(ctx, samples, sampleRate, language)
		return err
	}, b.inner.Synchronize)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
