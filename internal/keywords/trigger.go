package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/dashboard"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/metrics"
	"go.opentelemetry.io/otel/metric"
)

// Publisher receives the keywords envelope for the dashboard feed.
type Publisher interface {
	Broadcast(env dashboard.Envelope)
}

type TriggerOptions struct {
	MaxArticles    int
	MaxImages      int
	Timeout        time.Duration
	MaxConcurrency int
}

// Trigger runs keyword extraction and search in the background, one task per utterance.
// Tasks are never awaited by the caller and their failures are only logged.
type Trigger struct {
	searcher  Searcher
	publisher Publisher
	opts      TriggerOptions
	log       *slog.Logger
	clock     func() time.Time
	sema      chan struct{}
	wg        sync.WaitGroup
	searches  metric.Int64Counter
}

func NewTrigger(searcher Searcher, publisher Publisher, opts TriggerOptions, log *slog.Logger) *Trigger {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	log = log.With(slog.String("component", "keyword-trigger"))
	return &Trigger{
		searcher:  searcher,
		publisher: publisher,
		opts:      opts,
		log:       log,
		clock:     time.Now,
		sema:      make(chan struct{}, opts.MaxConcurrency),
		searches:  metrics.Counter(metrics.Meter("keywords"), "rttd.keywords.searches", "Keyword searches issued", log),
	}
}

// Fire schedules a keyword search for one recognized utterance and returns immediately.
func (t *Trigger) Fire(text, locale, pairID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.log.Error("keyword task panicked", slog.String("pair_id", pairID), slog.String("panic", fmt.Sprint(r)))
			}
		}()
		t.sema <- struct{}{}
		defer func() { <-t.sema }()
		t.run(text, locale, pairID)
	}()
}

func (t *Trigger) run(text, locale, pairID string) {
	kws := Extract(text, locale)
	if len(kws) == 0 {
		t.log.Debug("no keywords extracted", slog.String("locale", locale))
		return
	}
	t.log.Info("keywords extracted", slog.String("locale", locale), slog.Any("keywords", kws))

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.Timeout)
	defer cancel()

	t.searches.Add(ctx, 1)
	articles, images, err := t.searcher.Search(ctx, strings.Join(kws, " "), t.opts.MaxArticles, t.opts.MaxImages)
	if err != nil {
		t.log.Warn("keyword search failed", slog.String("pair_id", pairID), slogError(err))
		return
	}
	t.publisher.Broadcast(dashboard.NewKeywords(kws, articles, images, pairID, t.clock()))
}

// Wait blocks until every scheduled task has finished. Used on shutdown and in tests.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
