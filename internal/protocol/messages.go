package protocol

import "time"

// AudioFrame carries one captured chunk of PCM audio from the capture stage.
type AudioFrame struct {
	SessionID  string    `json:"session_id"`
	Sequence   int       `json:"sequence"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	BitDepth   int       `json:"bit_depth"`
	PCM        []byte    `json:"pcm"`
	CapturedAt time.Time `json:"captured_at"`
}

// TranslationRequest is published for every accepted recognition.
type TranslationRequest struct {
	Text           string    `json:"text"`
	PairID         string    `json:"pair_id"`
	SourceLanguage string    `json:"source_language,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TranslationResult is produced by the translation stage.
type TranslationResult struct {
	Text       string `json:"text"`
	SourceText string `json:"source_text,omitempty"`
	PairID     string `json:"pair_id,omitempty"`
}

// Article is a web search hit shown next to recognized text.
type Article struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Image is an image search hit.
type Image struct {
	Title     string `json:"title"`
	Image     string `json:"image"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

const (
	SubjectAudioFramePrefix   = "audio.frame"
	SubjectTranslationRequest = "translation.request"
	SubjectTranslationResult  = "translation.result"
	DashboardBroadcastPath    = "/api/broadcast"
)
