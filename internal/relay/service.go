package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/bus"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
	"github.com/nats-io/nats.go"
)

// TranslatedSink receives translations paired with their source utterance.
type TranslatedSink interface {
	SendTranslated(text, sourceText, pairID string)
}

// Service forwards translation results from the bus to the dashboard.
type Service struct {
	subject string
	bus     *bus.Client
	sink    TranslatedSink
	logger  *slog.Logger
	sub     *nats.Subscription
}

func NewService(cfg config.TranslationConfig, busClient *bus.Client, sink TranslatedSink, logger *slog.Logger) *Service {
	subject := cfg.ResultSubject
	if subject == "" {
		subject = protocol.SubjectTranslationResult
	}
	return &Service{
		subject: subject,
		bus:     busClient,
		sink:    sink,
		logger:  logger.With(slog.String("component", "relay")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(s.subject, s.handleResult)
	if err != nil {
		return fmt.Errorf("subscribe translation results: %w", err)
	}
	s.sub = sub
	if err := s.bus.Conn().Flush(); err != nil {
		return fmt.Errorf("flush translation results subscription: %w", err)
	}
	return nil
}

func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleResult(msg *nats.Msg) {
	var result protocol.TranslationResult
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		s.logger.Warn("relay failed to decode translation result", slogError(err))
		return
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}
	s.sink.SendTranslated(text, result.SourceText, result.PairID)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
