package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
	paths  []string
	calls  atomic.Int32
}

func (r *recorder) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.calls.Add(1)
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.paths = append(r.paths, req.Method+" "+req.URL.Path)
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func newBridge(url string, enabled bool) *Bridge {
	return New(config.DashboardConfig{Enabled: enabled, ServerURL: url, Workers: 4, TimeoutMS: 2000, QueueSize: 64}, newLogger())
}

func TestBroadcastPostsRecognizedEnvelope(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	b := newBridge(srv.URL, true)
	b.SendRecognized("Hello world.", "en", "pair-1")
	b.Close()
	b.wg.Wait()

	if rec.calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", rec.calls.Load())
	}
	if rec.paths[0] != "POST /api/broadcast" {
		t.Fatalf("unexpected request %s", rec.paths[0])
	}
	body := rec.bodies[0]
	if body["type"] != "recognized" || body["text"] != "Hello world." || body["language"] != "en" || body["pair_id"] != "pair-1" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string)); err != nil {
		t.Fatalf("timestamp not ISO-8601: %v", err)
	}
}

func TestDisabledBridgeMakesNoCalls(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	b := newBridge(srv.URL, false)
	b.SendRecognized("a", "en", "p")
	b.SendTranslated("b", "a", "p")
	b.SendKeywords([]string{"k"}, nil, nil, "p")
	b.SendStatus("running", "ok")
	b.SendError("boom")
	b.Close()
	time.Sleep(50 * time.Millisecond)

	if rec.calls.Load() != 0 {
		t.Fatalf("expected no calls, got %d", rec.calls.Load())
	}
}

func TestBroadcastSwallowsServerErrors(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	defer srv.Close()

	b := newBridge(srv.URL, true)
	for i := 0; i < 5; i++ {
		b.SendStatus("running", "tick")
	}
	b.Close()
	b.wg.Wait()
	if rec.calls.Load() != 5 {
		t.Fatalf("expected 5 attempts without retry, got %d", rec.calls.Load())
	}
}

func TestBroadcastUnreachableServerDoesNotBlock(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	b := newBridge(url, true)
	start := time.Now()
	for i := 0; i < 10; i++ {
		b.SendError("unreachable")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("broadcast blocked the caller")
	}
	b.Close()
	b.wg.Wait()
}

func TestBroadcastAfterCloseIsIgnored(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	defer srv.Close()

	b := newBridge(srv.URL, true)
	b.Close()
	b.Close()
	b.SendStatus("stopped", "late")
	b.wg.Wait()
	if rec.calls.Load() != 0 {
		t.Fatalf("expected no calls after close, got %d", rec.calls.Load())
	}
}

func TestCloseDoesNotWaitForSlowSends(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	b := newBridge(srv.URL, true)
	b.SendStatus("running", "slow")
	start := time.Now()
	b.Close()
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("close waited for outstanding sends")
	}
}

func TestEnvelopeWireShapes(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := []struct {
		env  Envelope
		want map[string]any
	}{
		{NewTranslated("Hola", "Hello", "p1", now), map[string]any{"type": "translated", "text": "Hola", "source_text": "Hello", "pair_id": "p1"}},
		{NewStatus("running", "started", now), map[string]any{"type": "status", "status": "running", "message": "started"}},
		{NewError("boom", now), map[string]any{"type": "error", "message": "boom"}},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.env)
		if err != nil {
			t.Fatalf("marshal %s: %v", tc.env.Type(), err)
		}
		var got map[string]any
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("%s: field %s = %v, want %v", tc.env.Type(), k, got[k], v)
			}
		}
		if got["timestamp"] != "2025-01-02T03:04:05Z" {
			t.Fatalf("%s: unexpected timestamp %v", tc.env.Type(), got["timestamp"])
		}
	}
}

func TestKeywordsEnvelope(t *testing.T) {
	now := time.Now()
	env := NewKeywords([]string{"東京", "タワー"},
		[]protocol.Article{{Title: "t", Link: "l", Snippet: "s"}},
		[]protocol.Image{{Title: "i", Image: "img", Thumbnail: "th", URL: "u"}},
		"p9", now)
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Type     string             `json:"type"`
		Keywords []string           `json:"keywords"`
		Articles []protocol.Article `json:"articles"`
		Images   []protocol.Image   `json:"images"`
		PairID   string             `json:"pair_id"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "keywords" || len(got.Keywords) != 2 || got.Articles[0].Link != "l" || got.Images[0].Thumbnail != "th" || got.PairID != "p9" {
		t.Fatalf("unexpected keywords envelope %+v", got)
	}
}

func TestMissingPairIDUsesTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	env := NewRecognized("x", "en", "", now)
	if env.PairID != "2025-06-07T08:09:10Z" {
		t.Fatalf("expected timestamp pair id, got %s", env.PairID)
	}
	if !env.CreatedAt().Equal(now) {
		t.Fatalf("expected creation time preserved")
	}
}
