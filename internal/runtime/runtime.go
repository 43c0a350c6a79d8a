package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxcraft-labs/voxcraft/internal/api"
	"github.com/voxcraft-labs/voxcraft/internal/bus"
	"github.com/voxcraft-labs/voxcraft/internal/catalog"
	"github.com/voxcraft-labs/voxcraft/internal/config"
	"github.com/voxcraft-labs/voxcraft/internal/engine"
	"github.com/voxcraft-labs/voxcraft/internal/history"
	"github.com/voxcraft-labs/voxcraft/internal/natsserver"
	"github.com/voxcraft-labs/voxcraft/internal/studio"
)

// Runtime assembles the daemon: telemetry, the bus, storage, the
// studio and the HTTP surface. Start blocks until ctx is cancelled,
// then tears everything down in reverse order.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	ready      atomic.Bool
	wg         sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}

	busCfg := r.cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}
	busClient, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		embedded.Shutdown()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}

	backend, err := history.OpenSQLite(ctx, r.cfg.History, r.logger)
	if err != nil {
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open history store: %w", err)
	}

	voiceCatalog, err := catalog.Open(ctx, r.cfg.Catalog, r.logger)
	if err != nil {
		backend.Close()
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open voice catalog: %w", err)
	}

	synth, audio := r.buildSynthesizer()
	st, err := studio.New(ctx, studio.Options{
		Config:      r.cfg,
		Synthesizer: synth,
		Extractor:   r.buildExtractor(),
		Transformer: r.buildTransformer(),
		Backend:     backend,
		Events:      busClient,
		Logger:      r.logger,
	})
	if err != nil {
		voiceCatalog.Close()
		backend.Close()
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to build studio: %w", err)
	}

	server := api.NewServer(api.Options{
		Studio:  st,
		Catalog: voiceCatalog,
		Audio:   audio,
		Metrics: metricsHandler,
		Logger:  r.logger,
		Ready:   r.ready.Load,
		Healthy: busClient.Healthy,
	})

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("engine_mode", r.cfg.Engine.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if err := voiceCatalog.Close(); err != nil {
		r.logger.Error("catalog close error", slog.String("error", err.Error()))
	}
	if err := backend.Close(); err != nil {
		r.logger.Error("history close error", slog.String("error", err.Error()))
	}
	busClient.Close()
	embedded.Shutdown()

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	return nil
}

func (r *Runtime) buildSynthesizer() (engine.Synthesizer, engine.AudioSource) {
	if r.cfg.Engine.Mode == "http" {
		client := engine.NewHTTPSynthesizer(r.cfg.Engine.Endpoint, time.Duration(r.cfg.Engine.TimeoutMS)*time.Millisecond)
		return client, client
	}
	mock := engine.NewMockSynthesizer()
	return mock, mock.(engine.AudioSource)
}

func (r *Runtime) buildExtractor() engine.Extractor {
	if r.cfg.Extractor.Mode == "http" {
		return engine.NewHTTPExtractor(r.cfg.Extractor.Endpoint, time.Duration(r.cfg.Extractor.TimeoutMS)*time.Millisecond)
	}
	return engine.NewMockExtractor()
}

func (r *Runtime) buildTransformer() engine.Transformer {
	if r.cfg.Transformer.Mode == "http" {
		return engine.NewHTTPTransformer(r.cfg.Transformer.Endpoint, time.Duration(r.cfg.Transformer.TimeoutMS)*time.Millisecond)
	}
	return engine.NewMockTransformer()
}
