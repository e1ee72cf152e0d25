package translation

import (
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/bus"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
)

// Publisher hands accepted utterances to the translation stage over the bus.
// Publishing is buffered by the NATS client and never waits for the translator.
type Publisher struct {
	bus      *bus.Client
	subject  string
	language string
	clock    func() time.Time
}

func NewPublisher(cfg config.TranslationConfig, sourceLanguage string, busClient *bus.Client) *Publisher {
	subject := cfg.RequestSubject
	if subject == "" {
		subject = protocol.SubjectTranslationRequest
	}
	return &Publisher{
		bus:      busClient,
		subject:  subject,
		language: sourceLanguage,
		clock:    time.Now,
	}
}

func (p *Publisher) Publish(text, pairID string) error {
	return p.bus.PublishJSON(p.subject, protocol.TranslationRequest{
		Text:           text,
		PairID:         pairID,
		SourceLanguage: p.language,
		Timestamp:      p.clock().UTC(),
	})
}
