package recognition

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/audio"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/dashboard"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/metrics"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/stt"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/transcriptlog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultPollTimeout = 500 * time.Millisecond

// TranslationSink receives every emitted utterance for translation.
type TranslationSink interface {
	Publish(text, pairID string) error
}

// Dashboard receives recognized envelopes.
type Dashboard interface {
	Broadcast(env dashboard.Envelope)
}

// KeywordTrigger starts a background keyword search for an utterance.
type KeywordTrigger interface {
	Fire(text, locale, pairID string)
}

// HistoryRecorder persists emitted utterances.
type HistoryRecorder interface {
	RecordUtterance(ctx context.Context, pairID, text, language string, at time.Time) error
}

// Options wires a Worker. Chunks and Backend are required; every other sink is optional
// and skipped when nil.
type Options struct {
	Chunks      <-chan audio.Chunk
	Backend     stt.Backend
	Language    string
	PollTimeout time.Duration
	DedupWindow time.Duration

	Transcript  *transcriptlog.Writer
	History     HistoryRecorder
	Translation TranslationSink
	Dashboard   Dashboard
	Keywords    KeywordTrigger
	Console     io.Writer
	DebugDir    string

	Clock  func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Worker pulls chunks one at a time, transcribes them and fans accepted results out.
// It is the only consumer of its chunk channel and the only writer of its transcript log.
type Worker struct {
	opts   Options
	policy *EmissionPolicy
	log    *slog.Logger
	tracer trace.Tracer

	chunks        metric.Int64Counter
	emitted       metric.Int64Counter
	suppressed    metric.Int64Counter
	backendErrors metric.Int64Counter
}

func NewWorker(opts Options) (*Worker, error) {
	if opts.Chunks == nil {
		return nil, fmt.Errorf("recognition worker requires a chunk channel")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("recognition worker requires a backend")
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger.With(slog.String("component", "recognition"))
	meter := metrics.Meter("recognition")
	return &Worker{
		opts:          opts,
		policy:        NewEmissionPolicy(opts.DedupWindow),
		log:           log,
		tracer:        otel.Tracer("github.com/RimgO/RealTimeTranslateDisplay/recognition"),
		chunks:        metrics.Counter(meter, "rttd.recognition.chunks", "Audio chunks taken from the queue", log),
		emitted:       metrics.Counter(meter, "rttd.recognition.emitted", "Transcripts emitted", log),
		suppressed:    metrics.Counter(meter, "rttd.recognition.suppressed", "Transcripts suppressed as duplicates", log),
		backendErrors: metrics.Counter(meter, "rttd.recognition.backend_errors", "Backend transcription failures", log),
	}, nil
}

type pollResult int

const (
	pollChunk pollResult = iota
	pollIdle
	pollStopped
)

// Run processes chunks until ctx is cancelled or the chunk channel is closed. The transcript
// log is flushed on return.
func (w *Worker) Run(ctx context.Context) error {
	defer w.flush()
	w.log.Info("recognition worker started", slog.String("language", w.opts.Language))
	for {
		chunk, res := w.next(ctx)
		switch res {
		case pollStopped:
			w.log.Info("recognition worker stopping")
			return nil
		case pollIdle:
			continue
		}
		w.process(ctx, chunk)
	}
}

// next waits up to the poll timeout for a chunk.
func (w *Worker) next(ctx context.Context) (audio.Chunk, pollResult) {
	if ctx.Err() != nil {
		return audio.Chunk{}, pollStopped
	}
	timer := time.NewTimer(w.opts.PollTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return audio.Chunk{}, pollStopped
	case chunk, ok := <-w.opts.Chunks:
		if !ok {
			return audio.Chunk{}, pollStopped
		}
		return chunk, pollChunk
	case <-timer.C:
		return audio.Chunk{}, pollIdle
	}
}

func (w *Worker) process(ctx context.Context, chunk audio.Chunk) {
	w.chunks.Add(ctx, 1)

	samples, err := audio.Normalize(chunk)
	if err != nil {
		w.log.Warn("failed to normalize chunk", slogError(err))
		return
	}
	if w.opts.DebugDir != "" {
		w.dumpChunk(chunk)
	}

	result, err := w.transcribe(ctx, samples, chunk.Format.SampleRate)
	if err != nil {
		w.backendErrors.Add(ctx, 1)
		w.log.Warn("transcription failed", slogError(err))
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		w.log.Debug("empty transcription")
		return
	}

	now := w.opts.Clock()
	if !w.policy.Admit(text, now) {
		w.suppressed.Add(ctx, 1)
		w.log.Debug("duplicate transcription suppressed", slog.String("text", text))
		return
	}
	w.emit(ctx, text, result.Language, now)
}

func (w *Worker) transcribe(ctx context.Context, samples []float32, sampleRate int) (result stt.Result, err error) {
	ctx, span := w.tracer.Start(ctx, "recognition.transcribe", trace.WithAttributes(
		attribute.Int("samples", len(samples)),
		attribute.String("language", w.opts.Language),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return w.opts.Backend.Transcribe(ctx, samples, sampleRate, w.opts.Language)
}

func (w *Worker) emit(ctx context.Context, text, detected string, now time.Time) {
	pairID := w.opts.NewID()
	language := w.opts.Language
	if language == "" {
		language = detected
	}
	w.emitted.Add(ctx, 1)
	w.log.Info("recognized", slog.String("pair_id", pairID), slog.String("text", text))

	if w.opts.Transcript != nil {
		// Failures are logged by the writer; the batch is gone either way.
		_ = w.opts.Transcript.Record(text)
	}
	if w.opts.History != nil {
		if err := w.opts.History.RecordUtterance(ctx, pairID, text, language, now); err != nil {
			w.log.Warn("failed to record utterance", slog.String("pair_id", pairID), slogError(err))
		}
	}
	if w.opts.Translation != nil {
		if err := w.opts.Translation.Publish(text, pairID); err != nil {
			w.log.Warn("failed to publish translation request", slog.String("pair_id", pairID), slogError(err))
		}
	} else if w.opts.Keywords != nil {
		w.opts.Keywords.Fire(text, language, pairID)
	}
	if w.opts.Dashboard != nil {
		w.opts.Dashboard.Broadcast(dashboard.NewRecognized(text, language, pairID, now))
	} else if w.opts.Console != nil {
		if err := printConsole(w.opts.Console, text); err != nil {
			w.log.Debug("console write failed", slogError(err))
		}
	}
}

func (w *Worker) dumpChunk(chunk audio.Chunk) {
	at := chunk.CapturedAt
	if at.IsZero() {
		at = w.opts.Clock()
	}
	name := fmt.Sprintf("debug_audio_%d.wav", at.UnixMilli())
	path := filepath.Join(w.opts.DebugDir, name)
	if err := audio.WriteChunkWAV(path, chunk); err != nil {
		w.log.Warn("failed to write debug audio", slog.String("path", path), slogError(err))
	}
}

func (w *Worker) flush() {
	if w.opts.Transcript == nil {
		return
	}
	_ = w.opts.Transcript.Flush()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
