package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/metrics"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type job struct {
	kind string
	body []byte
}

// Bridge delivers envelopes to the dashboard broadcast endpoint on a fixed worker pool.
// Delivery is best effort: failures are logged and dropped, order across workers is not kept.
type Bridge struct {
	enabled bool
	url     string
	timeout time.Duration
	client  *http.Client
	log     *slog.Logger
	clock   func() time.Time

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup

	sent    metric.Int64Counter
	failed  metric.Int64Counter
	dropped metric.Int64Counter
}

func New(cfg config.DashboardConfig, log *slog.Logger) *Bridge {
	log = log.With(slog.String("component", "dashboard-bridge"))
	meter := metrics.Meter("dashboard")
	b := &Bridge{
		enabled: cfg.Enabled,
		url:     strings.TrimRight(cfg.ServerURL, "/") + protocol.DashboardBroadcastPath,
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		client:  &http.Client{},
		log:     log,
		clock:   time.Now,
		sent:    metrics.Counter(meter, "rttd.dashboard.sent", "Envelopes accepted by the dashboard", log),
		failed:  metrics.Counter(meter, "rttd.dashboard.failed", "Envelopes the dashboard did not accept", log),
		dropped: metrics.Counter(meter, "rttd.dashboard.dropped", "Envelopes dropped before sending", log),
	}
	if !b.enabled {
		return b
	}
	if b.timeout <= 0 {
		b.timeout = 2 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 256
	}
	b.jobs = make(chan job, queue)
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bridge) Enabled() bool {
	return b != nil && b.enabled
}

// Broadcast queues env for delivery and returns immediately.
func (b *Bridge) Broadcast(env Envelope) {
	if !b.Enabled() {
		return
	}
	body, err := json.Marshal(env)
	if err != nil {
		b.log.Warn("failed to encode envelope", slog.String("type", env.Type()), slogError(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.jobs <- job{kind: env.Type(), body: body}:
	default:
		b.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", env.Type())))
		b.log.Warn("dashboard queue full, dropping envelope", slog.String("type", env.Type()))
	}
}

func (b *Bridge) SendRecognized(text, language, pairID string) {
	b.Broadcast(NewRecognized(text, language, pairID, b.clock()))
}

func (b *Bridge) SendTranslated(text, sourceText, pairID string) {
	b.Broadcast(NewTranslated(text, sourceText, pairID, b.clock()))
}

func (b *Bridge) SendKeywords(keywords []string, articles []protocol.Article, images []protocol.Image, pairID string) {
	b.Broadcast(NewKeywords(keywords, articles, images, pairID, b.clock()))
}

func (b *Bridge) SendStatus(status, message string) {
	b.Broadcast(NewStatus(status, message, b.clock()))
}

func (b *Bridge) SendError(message string) {
	b.Broadcast(NewError(message, b.clock()))
}

// Close stops accepting envelopes. It does not wait for queued sends, which keep draining
// on the worker pool.
func (b *Bridge) Close() {
	if !b.Enabled() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.jobs)
}

func (b *Bridge) worker() {
	defer b.wg.Done()
	for j := range b.jobs {
		attrs := metric.WithAttributes(attribute.String("type", j.kind))
		if err := b.post(j); err != nil {
			b.failed.Add(context.Background(), 1, attrs)
			b.log.Debug("dashboard broadcast failed", slog.String("type", j.kind), slogError(err))
			continue
		}
		b.sent.Add(context.Background(), 1, attrs)
	}
}

func (b *Bridge) post(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(j.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dashboard returned status %s", resp.Status)
	}
	return nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
