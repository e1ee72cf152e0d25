package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RimgO/RealTimeTranslateDisplay/internal/bus"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/capture"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/config"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/dashboard"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/history"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/keywords"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/natsserver"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/recognition"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/relay"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/stt"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/transcriptlog"
	"github.com/RimgO/RealTimeTranslateDisplay/internal/translation"
	"github.com/google/uuid"
)

// BackendFactory builds the transcription backend. It is replaceable for tests.
type BackendFactory func(cfg config.RecognitionConfig, gate *stt.Gate, log *slog.Logger) (stt.Backend, error)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	console    io.Writer
	newBackend BackendFactory
	clock      func() time.Time

	httpServer    *http.Server
	metricsServer *http.Server
	ready         atomic.Bool
	checks        []func() bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		console:    os.Stdout,
		newBackend: stt.NewBackend,
		clock:      time.Now,
	}
}

// WithBackendFactory replaces the backend constructor.
func (r *Runtime) WithBackendFactory(f BackendFactory) *Runtime {
	r.newBackend = f
	return r
}

// WithConsole sets where utterances are printed when no dashboard is attached.
func (r *Runtime) WithConsole(w io.Writer) *Runtime {
	r.console = w
	return r
}

// Start wires the pipeline and blocks until ctx is cancelled. Startup failures are returned.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(r.cfg, os.Stdout, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := tel.shutdown(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}()

	bridge := dashboard.New(r.cfg.Dashboard, r.logger)
	defer bridge.Close()

	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	busClient, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect bus: %w", err)
	}
	defer busClient.Close()
	r.checks = append(r.checks, busClient.Healthy)

	startedAt := r.clock()
	sessionID := uuid.NewString()
	lang := r.cfg.Recognition.SourceLanguage

	store, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()
	if err := store.StartSession(ctx, sessionID, lang); err != nil {
		return fmt.Errorf("failed to start history session: %w", err)
	}

	backend, err := r.newBackend(r.cfg.Recognition, stt.NewGate(), r.logger)
	if err != nil {
		bridge.SendError(fmt.Sprintf("transcription backend unavailable: %v", err))
		return fmt.Errorf("failed to create transcription backend: %w", err)
	}

	transcript, err := transcriptlog.Open(r.cfg.Recognition.OutputDir, lang, startedAt, r.cfg.Recognition.LogFlushThreshold, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open transcript log: %w", err)
	}
	defer transcript.Close()

	captureSvc := capture.NewService(r.cfg.Audio, busClient, r.logger)
	if err := captureSvc.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer captureSvc.Close()
	r.checks = append(r.checks, captureSvc.Healthy)

	opts := recognition.Options{
		Chunks:      captureSvc.Chunks(),
		Backend:     backend,
		Language:    lang,
		PollTimeout: time.Duration(r.cfg.Recognition.PollTimeoutMS) * time.Millisecond,
		DedupWindow: time.Duration(r.cfg.Recognition.DedupWindowMS) * time.Millisecond,
		Transcript:  transcript,
		History:     store.Session(sessionID),
		Clock:       r.clock,
		Logger:      r.logger,
	}
	if r.cfg.Recognition.Debug {
		opts.DebugDir = filepath.Join(r.cfg.Recognition.OutputDir, "debug_audio")
	}
	if bridge.Enabled() {
		opts.Dashboard = bridge
	} else {
		opts.Console = r.console
	}

	var trigger *keywords.Trigger
	if r.cfg.Translation.Enabled {
		opts.Translation = translation.NewPublisher(r.cfg.Translation, lang, busClient)
		relaySvc := relay.NewService(r.cfg.Translation, busClient, bridge, r.logger)
		if err := relaySvc.Start(); err != nil {
			return fmt.Errorf("failed to start translation relay: %w", err)
		}
		defer relaySvc.Close()
		r.checks = append(r.checks, relaySvc.Healthy)
		if r.cfg.Keywords.Enabled {
			r.logger.Info("keyword search disabled while translation is enabled")
		}
	} else if r.cfg.Keywords.Enabled && !bridge.Enabled() {
		r.logger.Info("keyword search disabled without a dashboard")
	} else if r.cfg.Keywords.Enabled {
		kw := r.cfg.Keywords
		timeout := time.Duration(kw.TimeoutMS) * time.Millisecond
		trigger = keywords.NewTrigger(
			keywords.NewSearchClient(kw.SearchEndpoint, timeout),
			bridge,
			keywords.TriggerOptions{
				MaxArticles:    kw.MaxArticles,
				MaxImages:      kw.MaxImages,
				Timeout:        timeout,
				MaxConcurrency: kw.MaxConcurrency,
			},
			r.logger,
		)
		opts.Keywords = trigger
	}

	worker, err := recognition.NewWorker(opts)
	if err != nil {
		return fmt.Errorf("failed to create recognition worker: %w", err)
	}

	r.startHTTP(tel.metrics)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Run(ctx)
	}()

	r.ready.Store(true)
	bridge.SendStatus("running", fmt.Sprintf("recognition started (%s)", lang))
	r.logger.Info("runtime started",
		slog.String("session_id", sessionID),
		slog.String("transcript", transcript.Path()))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	<-workerDone
	if trigger != nil {
		trigger.Wait()
	}
	bridge.SendStatus("stopped", "recognition stopped")
	r.stopHTTP()
	return nil
}

func (r *Runtime) startHTTP(metrics http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer)

	if metrics != nil && r.cfg.Telemetry.PrometheusBind != "" && r.cfg.Telemetry.PrometheusBind != addr {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer)
	}
	r.logger.Info("http listening", slog.String("addr", addr), slog.String("metrics", r.cfg.Telemetry.PrometheusBind))
}

func (r *Runtime) serve(srv *http.Server) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("addr", srv.Addr), slogError(err))
		}
	}()
}

func (r *Runtime) stopHTTP() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slogError(err))
		}
	}
	r.wg.Wait()
}

func (r *Runtime) healthy() bool {
	for _, check := range r.checks {
		if !check() {
			return false
		}
	}
	return true
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("degraded"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
