package capture

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/audio"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/bus"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service turns audio frames published on the bus into the bounded chunk queue consumed by
// the recognition worker. When the queue is full the newest frame is dropped.
type Service struct {
	cfg    config.AudioConfig
	bus    *bus.Client
	logger *slog.Logger
	sub    *nats.Subscription

	mu     sync.RWMutex
	closed bool
	chunks chan audio.Chunk
}

func NewService(cfg config.AudioConfig, busClient *bus.Client, logger *slog.Logger) *Service {
	size := cfg.QueueSize
	if size <= 0 {
		size = 32
	}
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		logger: logger.With(slog.String("component", "capture")),
		chunks: make(chan audio.Chunk, size),
	}
}

func (s *Service) Start() error {
	prefix := s.cfg.FrameSubject
	if prefix == "" {
		prefix = protocol.SubjectAudioFramePrefix
	}
	sub, err := s.bus.Conn().Subscribe(prefix+".>", s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.sub = sub
	if err := s.bus.Conn().Flush(); err != nil {
		return fmt.Errorf("flush audio frames subscription: %w", err)
	}
	return nil
}

// Chunks is the queue the recognition worker reads from. It is closed by Close.
func (s *Service) Chunks() <-chan audio.Chunk {
	return s.chunks
}

func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.chunks)
	}
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("failed to decode audio frame", slogError(err))
		return
	}
	if len(frame.PCM) == 0 {
		return
	}
	chunk := audio.Chunk{
		Data: frame.PCM,
		Format: audio.Format{
			Channels:   orDefault(frame.Channels, s.cfg.Channels),
			SampleRate: orDefault(frame.SampleRate, s.cfg.SampleRate),
			BitDepth:   orDefault(frame.BitDepth, s.cfg.BitDepth),
		},
		CapturedAt: frame.CapturedAt,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.chunks <- chunk:
	default:
		s.logger.Warn("audio queue full, dropping frame",
			slog.String("session_id", frame.SessionID),
			slog.Int("sequence", frame.Sequence))
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
