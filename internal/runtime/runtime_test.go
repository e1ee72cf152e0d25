package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/protocol"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/stt"
	"github.com/nats-io/nats.go"
)

type dashboardRecorder struct {
	mu    sync.Mutex
	types []string
	texts []string
	seen  chan string
}

func (d *dashboardRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(r.Body).Decode(&env)
	d.mu.Lock()
	d.types = append(d.types, env.Type)
	d.texts = append(d.texts, env.Text+env.Message)
	d.mu.Unlock()
	select {
	case d.seen <- env.Type:
	default:
	}
	w.WriteHeader(http.StatusOK)
}

func (d *dashboardRecorder) waitFor(t *testing.T, typ string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-d.seen:
			if got == typ {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s envelope", typ)
		}
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, dashboardURL string) config.Config {
	tmp := t.TempDir()
	cfg := config.Default()
	cfg.HTTP.Bind = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Telemetry.PrometheusBind = "127.0.0.1:0"
	cfg.Bus.Port = freePort(t)
	cfg.Bus.StoreDir = filepath.Join(tmp, "nats")
	cfg.History.Path = filepath.Join(tmp, "history.db")
	cfg.Recognition.Mode = "mock"
	cfg.Recognition.OutputDir = filepath.Join(tmp, "logs")
	cfg.Recognition.PollTimeoutMS = 20
	cfg.Translation.Enabled = false
	cfg.Keywords.Enabled = false
	cfg.Dashboard.ServerURL = dashboardURL
	return cfg
}

func TestRuntimeRecognizesFramesFromBus(t *testing.T) {
	rec := &dashboardRecorder{seen: make(chan string, 16)}
	dash := httptest.NewServer(rec)
	defer dash.Close()

	cfg := testConfig(t, dash.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	rec.waitFor(t, "status")

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(cfg.HTTP.Port) + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.StatusCode)
	}

	nc, err := nats.Connect("nats://127.0.0.1:" + strconv.Itoa(cfg.Bus.Port))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	frame, _ := json.Marshal(protocol.AudioFrame{SessionID: "mic", PCM: make([]byte, 32000)})
	if err := nc.Publish(protocol.SubjectAudioFramePrefix+".mic", frame); err != nil {
		t.Fatalf("publish: %v", err)
	}
	rec.waitFor(t, "recognized")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runtime: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop")
	}

	entries, err := os.ReadDir(cfg.Recognition.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one transcript log, got %v (%v)", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "recognized_audio_log_en_") {
		t.Fatalf("unexpected log name %s", entries[0].Name())
	}
	data, err := os.ReadFile(filepath.Join(cfg.Recognition.OutputDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[mock transcript 1.0s]\n" {
		t.Fatalf("unexpected transcript log %q", data)
	}
}

// signalWriter reports each console write on a channel.
type signalWriter struct {
	wrote chan string
}

func (s *signalWriter) Write(p []byte) (int, error) {
	s.wrote <- string(p)
	return len(p), nil
}

func TestRuntimeSkipsKeywordSearchWithoutDashboard(t *testing.T) {
	var searches atomic.Int32
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer search.Close()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Dashboard.Enabled = false
	cfg.Keywords.Enabled = true
	cfg.Keywords.SearchEndpoint = search.URL

	console := &signalWriter{wrote: make(chan string, 4)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(cfg, logger).WithConsole(console)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	readyURL := "http://127.0.0.1:" + strconv.Itoa(cfg.HTTP.Port) + "/readyz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(readyURL)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("runtime did not become ready")
		}
		time.Sleep(20 * time.Millisecond)
	}

	nc, err := nats.Connect("nats://127.0.0.1:" + strconv.Itoa(cfg.Bus.Port))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	frame, _ := json.Marshal(protocol.AudioFrame{SessionID: "mic", PCM: make([]byte, 32000)})
	if err := nc.Publish(protocol.SubjectAudioFramePrefix+".mic", frame); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case out := <-console.wrote:
		if !strings.Contains(out, "mock transcript") {
			t.Fatalf("unexpected console output %q", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for console output")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runtime: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runtime did not stop")
	}
	if n := searches.Load(); n != 0 {
		t.Fatalf("expected no search requests without a dashboard, got %d", n)
	}
}

func TestRuntimeReportsBackendFailure(t *testing.T) {
	rec := &dashboardRecorder{seen: make(chan string, 16)}
	dash := httptest.NewServer(rec)
	defer dash.Close()

	cfg := testConfig(t, dash.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(cfg, logger).WithBackendFactory(func(config.RecognitionConfig, *stt.Gate, *slog.Logger) (stt.Backend, error) {
		return nil, errors.New("model missing")
	})

	err := rt.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "model missing") {
		t.Fatalf("expected backend error, got %v", err)
	}
	rec.waitFor(t, "error")
}
