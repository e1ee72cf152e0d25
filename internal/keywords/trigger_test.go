package keywords

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/dashboard"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	err     error
	panics  bool
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxArticles, maxImages int) ([]protocol.Article, []protocol.Image, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.panics {
		panic("search exploded")
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	return []protocol.Article{{Title: "t", Link: "http://l"}}, []protocol.Image{{Image: "http://i"}}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	envs []dashboard.Envelope
}

func (f *fakePublisher) Broadcast(env dashboard.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = append(f.envs, env)
}

func newTestTrigger(s Searcher, p Publisher) *Trigger {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTrigger(s, p, TriggerOptions{MaxArticles: 3, MaxImages: 3, Timeout: time.Second, MaxConcurrency: 2}, log)
}

func TestTriggerPublishesKeywords(t *testing.T) {
	s := &fakeSearcher{}
	p := &fakePublisher{}
	tr := newTestTrigger(s, p)

	tr.Fire("東京タワーに行きました", "ja", "pair-1")
	tr.Wait()

	if len(s.queries) != 1 || s.queries[0] != "東京 行 タワー" {
		t.Fatalf("unexpected queries %v", s.queries)
	}
	if len(p.envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(p.envs))
	}
	kw, ok := p.envs[0].(dashboard.Keywords)
	if !ok {
		t.Fatalf("expected keywords envelope, got %T", p.envs[0])
	}
	if kw.PairID != "pair-1" || len(kw.Keywords) != 3 {
		t.Fatalf("unexpected envelope %+v", kw)
	}
}

func TestTriggerSkipsSearchWithoutKeywords(t *testing.T) {
	s := &fakeSearcher{}
	p := &fakePublisher{}
	tr := newTestTrigger(s, p)

	tr.Fire("a b", "en", "pair-1")
	tr.Wait()

	if len(s.queries) != 0 || len(p.envs) != 0 {
		t.Fatalf("expected no search and no publish, got %v / %d", s.queries, len(p.envs))
	}
}

func TestTriggerSearchFailurePublishesNothing(t *testing.T) {
	s := &fakeSearcher{err: errors.New("offline")}
	p := &fakePublisher{}
	tr := newTestTrigger(s, p)

	tr.Fire("Hello world", "en", "pair-1")
	tr.Wait()

	if len(s.queries) != 1 {
		t.Fatalf("expected one search attempt, got %v", s.queries)
	}
	if len(p.envs) != 0 {
		t.Fatalf("expected nothing published, got %d", len(p.envs))
	}
}

func TestTriggerRecoversFromPanics(t *testing.T) {
	s := &fakeSearcher{panics: true}
	p := &fakePublisher{}
	tr := newTestTrigger(s, p)

	tr.Fire("Hello world", "en", "pair-1")
	tr.Fire("Another sentence", "en", "pair-2")
	tr.Wait()

	if len(s.queries) != 2 {
		t.Fatalf("expected both tasks to run, got %v", s.queries)
	}
}
