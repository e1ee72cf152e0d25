package transcriptlog

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const DefaultFlushThreshold = 10

// Writer is an append-only, batched sink for accepted utterances. It is owned by a single
// recognition worker and is not safe for concurrent use.
type Writer struct {
	path      string
	threshold int
	buffer    []string
	log       *slog.Logger
}

// FileName returns the per-session log file name for a source language and session start.
func FileName(sourceLanguage string, startedAt time.Time) string {
	return fmt.Sprintf("recognized_audio_log_%s_%s.txt", sourceLanguage, startedAt.Format("20060102_150405"))
}

// Open prepares a writer for dir/FileName(sourceLanguage, startedAt). The file itself is
// created on the first flush.
func Open(dir, sourceLanguage string, startedAt time.Time, threshold int, log *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return New(filepath.Join(dir, FileName(sourceLanguage, startedAt)), threshold, log), nil
}

func New(path string, threshold int, log *slog.Logger) *Writer {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &Writer{
		path:      path,
		threshold: threshold,
		buffer:    make([]string, 0, threshold),
		log:       log.With(slog.String("component", "transcript-log")),
	}
}

func (w *Writer) Path() string { return w.path }

// Pending reports how many lines are buffered but not yet written.
func (w *Writer) Pending() int { return len(w.buffer) }

// Record buffers text and flushes once the threshold is reached.
func (w *Writer) Record(text string) error {
	w.buffer = append(w.buffer, text)
	if len(w.buffer) >= w.threshold {
		return w.Flush()
	}
	return nil
}

// Flush appends every buffered line to the file in insertion order. The buffer is cleared
// even when the write fails, so a failed batch is lost.
func (w *Writer) Flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	defer func() { w.buffer = w.buffer[:0] }()

	if err := w.write(); err != nil {
		w.log.Error("transcript log write failed",
			slog.String("path", w.path),
			slog.Int("dropped", len(w.buffer)),
			slogError(err))
		return err
	}
	return nil
}

func (w *Writer) write() error {
	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript log: %w", err)
	}
	bw := bufio.NewWriter(file)
	for _, line := range w.buffer {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			file.Close()
			return fmt.Errorf("write transcript log: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("write transcript log: %w", err)
	}
	return file.Close()
}

// Close performs a final flush.
func (w *Writer) Close() error {
	return w.Flush()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
