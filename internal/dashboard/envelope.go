package dashboard

import (
	"encoding/json"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
)

// Envelope is one message for the dashboard feed. Implementations are immutable once built.
type Envelope interface {
	Type() string
	CreatedAt() time.Time
}

func isoTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// pairOrTimestamp substitutes the creation time when no correlation id was supplied.
func pairOrTimestamp(pairID string, created time.Time) string {
	if pairID != "" {
		return pairID
	}
	return isoTime(created)
}

type Recognized struct {
	Text     string
	Language string
	PairID   string
	created  time.Time
}

func NewRecognized(text, language, pairID string, now time.Time) Recognized {
	return Recognized{Text: text, Language: language, PairID: pairOrTimestamp(pairID, now), created: now}
}

func (Recognized) Type() string           { return "recognized" }
func (e Recognized) CreatedAt() time.Time { return e.created }

func (e Recognized) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		Text      string `json:"text"`
		Language  string `json:"language"`
		PairID    string `json:"pair_id"`
		Timestamp string `json:"timestamp"`
	}{e.Type(), e.Text, e.Language, e.PairID, isoTime(e.created)})
}

type Translated struct {
	Text       string
	SourceText string
	PairID     string
	created    time.Time
}

func NewTranslated(text, sourceText, pairID string, now time.Time) Translated {
	return Translated{Text: text, SourceText: sourceText, PairID: pairOrTimestamp(pairID, now), created: now}
}

func (Translated) Type() string           { return "translated" }
func (e Translated) CreatedAt() time.Time { return e.created }

func (e Translated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string  `json:"type"`
		Text       string  `json:"text"`
		SourceText *string `json:"source_text"`
		PairID     string  `json:"pair_id"`
		Timestamp  string  `json:"timestamp"`
	}{e.Type(), e.Text, nullable(e.SourceText), e.PairID, isoTime(e.created)})
}

type Keywords struct {
	Keywords []string
	Articles []protocol.Article
	Images   []protocol.Image
	PairID   string
	created  time.Time
}

func NewKeywords(keywords []string, articles []protocol.Article, images []protocol.Image, pairID string, now time.Time) Keywords {
	return Keywords{
		Keywords: append([]string(nil), keywords...),
		Articles: append([]protocol.Article(nil), articles...),
		Images:   append([]protocol.Image(nil), images...),
		PairID:   pairOrTimestamp(pairID, now),
		created:  now,
	}
}

func (Keywords) Type() string           { return "keywords" }
func (e Keywords) CreatedAt() time.Time { return e.created }

func (e Keywords) MarshalJSON() ([]byte, error) {
	articles := e.Articles
	if articles == nil {
		articles = []protocol.Article{}
	}
	images := e.Images
	if images == nil {
		images = []protocol.Image{}
	}
	return json.Marshal(struct {
		Type      string             `json:"type"`
		Keywords  []string           `json:"keywords"`
		Articles  []protocol.Article `json:"articles"`
		Images    []protocol.Image   `json:"images"`
		PairID    string             `json:"pair_id"`
		Timestamp string             `json:"timestamp"`
	}{e.Type(), e.Keywords, articles, images, e.PairID, isoTime(e.created)})
}

type Status struct {
	Status  string
	Message string
	created time.Time
}

func NewStatus(status, message string, now time.Time) Status {
	return Status{Status: status, Message: message, created: now}
}

func (Status) Type() string           { return "status" }
func (e Status) CreatedAt() time.Time { return e.created }

func (e Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		Status    string `json:"status"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{e.Type(), e.Status, e.Message, isoTime(e.created)})
}

type Error struct {
	Message string
	created time.Time
}

func NewError(message string, now time.Time) Error {
	return Error{Message: message, created: now}
}

func (Error) Type() string           { return "error" }
func (e Error) CreatedAt() time.Time { return e.created }

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{e.Type(), e.Message, isoTime(e.created)})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
